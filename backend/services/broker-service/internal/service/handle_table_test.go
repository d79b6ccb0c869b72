package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"gatebroker/backend/services/broker-service/internal/models"
	"gatebroker/backend/services/broker-service/internal/policy"
)

type fakeMirror struct {
	mu      sync.Mutex
	saved   map[string]models.SessionRecord
	saveErr error
	// beforeSave runs outside the lock at the start of Save.
	beforeSave func()
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{saved: make(map[string]models.SessionRecord)}
}

func (m *fakeMirror) Save(_ context.Context, handleID string, record models.SessionRecord) error {
	if m.beforeSave != nil {
		m.beforeSave()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[handleID] = record
	return nil
}

func (m *fakeMirror) Delete(_ context.Context, _ string, handleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, handleID)
	return nil
}

func (m *fakeMirror) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func TestHandleTableOpenClose(t *testing.T) {
	f := newFixture(policy.NewExclusive(false))
	mirror := newFakeMirror()
	table := NewHandleTable(f.broker, mirror, zap.NewNop())
	ctx := context.Background()

	id, handle, err := table.Open(ctx, userNamed(1, "alice"), endpointE, models.ClientInfo{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if id == "" || handle == nil {
		t.Fatalf("expected id and handle")
	}
	if got, ok := table.Get(id); !ok || got != handle {
		t.Fatalf("handle not stored")
	}
	if mirror.size() != 1 {
		t.Fatalf("expected mirrored session")
	}

	if err := table.Close(ctx, id); err != nil {
		t.Fatalf("close: %v", err)
	}
	if table.Len() != 0 || mirror.size() != 0 {
		t.Fatalf("handle not forgotten")
	}
	if err := table.Close(ctx, id); !errors.Is(err, ErrHandleNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(f.history.all()) != 1 {
		t.Fatalf("expected history entry")
	}
}

func TestHandleTableOpenFailure(t *testing.T) {
	f := newFixture(policy.NewExclusive(false))
	table := NewHandleTable(f.broker, nil, zap.NewNop())
	ctx := context.Background()

	if _, _, err := table.Open(ctx, userNamed(1, "alice"), endpointE, models.ClientInfo{}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, _, err := table.Open(ctx, userNamed(2, "bob"), endpointE, models.ClientInfo{}); err == nil {
		t.Fatalf("expected second open to fail")
	}
	if table.Len() != 1 {
		t.Fatalf("failed open must not be stored, have %d", table.Len())
	}
}

func TestHandleTableMirrorFailureIsNotFatal(t *testing.T) {
	f := newFixture(policy.NewUnrestricted())
	mirror := newFakeMirror()
	mirror.saveErr = errors.New("redis down")
	table := NewHandleTable(f.broker, mirror, zap.NewNop())

	if _, _, err := table.Open(context.Background(), userNamed(1, "alice"), endpointE, models.ClientInfo{}); err != nil {
		t.Fatalf("open must succeed without mirror: %v", err)
	}
}

func TestHandleTableCloseAll(t *testing.T) {
	f := newFixture(policy.NewUnrestricted())
	table := NewHandleTable(f.broker, nil, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := table.Open(ctx, userNamed(int64(i), "u"), endpointE, models.ClientInfo{}); err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
	}
	table.CloseAll(ctx)

	if table.Len() != 0 {
		t.Fatalf("expected empty table")
	}
	if len(f.broker.ActiveSessions(endpointE)) != 0 {
		t.Fatalf("expected no active sessions")
	}
	if len(f.history.all()) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(f.history.all()))
	}
}

func TestHandleTableHidesHandleUntilMirrored(t *testing.T) {
	f := newFixture(policy.NewUnrestricted())
	mirror := newFakeMirror()
	entered := make(chan struct{})
	release := make(chan struct{})
	mirror.beforeSave = func() {
		close(entered)
		<-release
	}
	table := NewHandleTable(f.broker, mirror, zap.NewNop())
	ctx := context.Background()

	type opened struct {
		id  string
		err error
	}
	done := make(chan opened, 1)
	go func() {
		id, _, err := table.Open(ctx, userNamed(1, "alice"), endpointE, models.ClientInfo{})
		done <- opened{id: id, err: err}
	}()

	<-entered
	if table.Len() != 0 {
		t.Fatalf("handle must not be closable before its mirror entry exists")
	}
	close(release)

	res := <-done
	if res.err != nil {
		t.Fatalf("open: %v", res.err)
	}
	if err := table.Close(ctx, res.id); err != nil {
		t.Fatalf("close: %v", err)
	}
	if mirror.size() != 0 {
		t.Fatalf("closed session still mirrored: %d entries", mirror.size())
	}
}

func TestHandleTableAdopt(t *testing.T) {
	f := newFixture(policy.NewUnrestricted())
	mirror := newFakeMirror()
	table := NewHandleTable(f.broker, mirror, zap.NewNop())
	ctx := context.Background()

	handle, err := f.broker.OpenSession(ctx, userNamed(1, "alice"), endpointE, models.ClientInfo{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	id := table.Adopt(ctx, handle)
	if got, ok := table.Get(id); !ok || got != handle {
		t.Fatalf("adopted handle not stored")
	}
	if mirror.size() != 1 {
		t.Fatalf("adopted handle not mirrored")
	}
	if err := table.Close(ctx, id); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(f.broker.ActiveSessions(endpointE)) != 0 {
		t.Fatalf("expected no active sessions after close")
	}
}
