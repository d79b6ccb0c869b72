package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gatebroker/backend/services/broker-service/internal/models"
)

type countingSource struct {
	mu     sync.Mutex
	calls  int
	params []models.Parameter
	err    error
}

func (s *countingSource) SelectParameters(context.Context, string) ([]models.Parameter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.Parameter, len(s.params))
	copy(out, s.params)
	return out, nil
}

func TestCachedParameterStoreHitsCache(t *testing.T) {
	source := &countingSource{params: []models.Parameter{{Name: "hostname", Value: "${BROKER_USERNAME}"}}}
	store := NewCachedParameterStore(source, time.Minute)
	ctx := context.Background()

	first, err := store.SelectParameters(ctx, "E")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	first[0].Value = "mutated"

	second, err := store.SelectParameters(ctx, "E")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected one source call, got %d", source.calls)
	}
	if second[0].Value != "${BROKER_USERNAME}" {
		t.Fatalf("cache returned caller-mutated data: %q", second[0].Value)
	}

	second[0].Value = "mutated again"
	third, _ := store.SelectParameters(ctx, "E")
	if third[0].Value != "${BROKER_USERNAME}" {
		t.Fatalf("cache entry shared with caller: %q", third[0].Value)
	}
}

func TestCachedParameterStoreInvalidate(t *testing.T) {
	source := &countingSource{params: []models.Parameter{{Name: "port", Value: "22"}}}
	store := NewCachedParameterStore(source, time.Minute)
	ctx := context.Background()

	store.SelectParameters(ctx, "E")
	store.Invalidate("E")
	store.SelectParameters(ctx, "E")

	if source.calls != 2 {
		t.Fatalf("expected reload after invalidate, got %d calls", source.calls)
	}
}

func TestCachedParameterStoreDoesNotCacheErrors(t *testing.T) {
	source := &countingSource{err: errors.New("db down")}
	store := NewCachedParameterStore(source, time.Minute)
	ctx := context.Background()

	if _, err := store.SelectParameters(ctx, "E"); err == nil {
		t.Fatalf("expected error")
	}
	source.err = nil
	if _, err := store.SelectParameters(ctx, "E"); err != nil {
		t.Fatalf("unexpected error after recovery: %v", err)
	}
	if source.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", source.calls)
	}
}
