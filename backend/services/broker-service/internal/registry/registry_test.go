package registry

import (
	"sync"
	"testing"
	"time"

	"gatebroker/backend/services/broker-service/internal/models"
)

func newRecord(user string) *models.SessionRecord {
	return &models.SessionRecord{Username: user, EndpointID: "E", StartDate: time.Now()}
}

func TestAddListNewestFirst(t *testing.T) {
	reg := New()
	a, b := newRecord("a"), newRecord("b")
	reg.Add("E", a)
	reg.Add("E", b)

	got := reg.List("E")
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Username != "b" || got[1].Username != "a" {
		t.Fatalf("unexpected order: %s, %s", got[0].Username, got[1].Username)
	}
	if len(reg.List("E")) != 2 {
		t.Fatalf("expected count 2, got %d", len(reg.List("E")))
	}
}

func TestListUnknownEndpointIsEmpty(t *testing.T) {
	reg := New()
	got := reg.List("missing")
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestRemoveDeletesEmptyEntry(t *testing.T) {
	reg := New()
	a, b := newRecord("a"), newRecord("b")
	reg.Add("E", a)
	reg.Add("E", b)

	reg.Remove("E", a)
	got := reg.List("E")
	if len(got) != 1 || got[0].Username != "b" {
		t.Fatalf("unexpected records after remove: %+v", got)
	}

	reg.Remove("E", b)
	if _, ok := reg.Snapshot()["E"]; ok {
		t.Fatalf("entry must be deleted once empty")
	}
}

func TestRemoveByIdentity(t *testing.T) {
	reg := New()
	start := time.Now()
	a := &models.SessionRecord{Username: "same", StartDate: start}
	b := &models.SessionRecord{Username: "same", StartDate: start}
	reg.Add("E", a)
	reg.Add("E", b)

	reg.Remove("E", a)
	if len(reg.List("E")) != 1 {
		t.Fatalf("expected one record left, got %d", len(reg.List("E")))
	}
	// b must still be removable, proving a was the one taken out.
	reg.Remove("E", b)
	if len(reg.List("E")) != 0 {
		t.Fatalf("expected no records left")
	}
}

func TestRemoveUnknownEndpointPanics(t *testing.T) {
	reg := New()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for unregistered endpoint")
		}
	}()
	reg.Remove("E", newRecord("a"))
}

func TestRemoveUnknownRecordPanics(t *testing.T) {
	reg := New()
	reg.Add("E", newRecord("a"))
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for unregistered record")
		}
	}()
	reg.Remove("E", newRecord("b"))
}

func TestListIsDetachedFromLaterChanges(t *testing.T) {
	reg := New()
	a := newRecord("a")
	reg.Add("E", a)

	view := reg.List("E")
	reg.Add("E", newRecord("b"))
	reg.Remove("E", a)
	a.EndDate = time.Now()

	if len(view) != 1 || view[0].Username != "a" {
		t.Fatalf("snapshot changed: %+v", view)
	}
	if !view[0].EndDate.IsZero() {
		t.Fatalf("snapshot must not alias the record")
	}
}

func TestConcurrentAddRemove(t *testing.T) {
	reg := New()
	const workers = 32
	const rounds = 200

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				rec := newRecord("u")
				reg.Add("E", rec)
				if n := len(reg.List("E")); n < 1 || n > workers {
					t.Errorf("count out of range: %d", n)
					return
				}
				_ = reg.List("E")
				reg.Remove("E", rec)
			}
		}()
	}
	wg.Wait()

	if len(reg.List("E")) != 0 {
		t.Fatalf("expected empty registry, got %d", len(reg.List("E")))
	}
	if len(reg.Snapshot()) != 0 {
		t.Fatalf("expected no entries left")
	}
}
