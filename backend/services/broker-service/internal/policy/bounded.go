package policy

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"gatebroker/backend/services/broker-service/internal/brokererr"
	"gatebroker/backend/services/broker-service/internal/models"
)

// Bounded allows at most limit concurrent holders per endpoint. An endpoint
// with MaxConnections set uses that value instead of the default limit,
// unless the policy is exclusive.
//
// In blocking mode Acquire waits for a free slot (or ctx to end); otherwise a
// full endpoint is refused with ErrAccessDenied.
type Bounded struct {
	limit    int64
	blocking bool
	// fixed ignores Endpoint.MaxConnections.
	fixed bool

	mu    sync.Mutex
	slots map[string]*semaphore.Weighted
}

// NewBounded returns a bounded policy. A limit below one is treated as one.
func NewBounded(limit int, blocking bool) *Bounded {
	if limit < 1 {
		limit = 1
	}
	return &Bounded{
		limit:    int64(limit),
		blocking: blocking,
		slots:    make(map[string]*semaphore.Weighted),
	}
}

// NewExclusive allows a single holder per endpoint whatever its
// MaxConnections says.
func NewExclusive(blocking bool) *Bounded {
	b := NewBounded(1, blocking)
	b.fixed = true
	return b
}

// The semaphore size is fixed when an endpoint is first seen.
func (b *Bounded) semaphoreFor(endpoint models.Endpoint) *semaphore.Weighted {
	b.mu.Lock()
	defer b.mu.Unlock()

	sem, ok := b.slots[endpoint.ID]
	if !ok {
		limit := b.limit
		if endpoint.MaxConnections > 0 && !b.fixed {
			limit = int64(endpoint.MaxConnections)
		}
		sem = semaphore.NewWeighted(limit)
		b.slots[endpoint.ID] = sem
	}
	return sem
}

// Acquire takes one slot on the endpoint.
func (b *Bounded) Acquire(ctx context.Context, user models.AuthenticatedUser, endpoint models.Endpoint) error {
	sem := b.semaphoreFor(endpoint)
	if !b.blocking {
		if !sem.TryAcquire(1) {
			return fmt.Errorf("%w: endpoint %q is in use", brokererr.ErrAccessDenied, endpoint.ID)
		}
		return nil
	}
	if err := sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("policy: wait for endpoint %q: %w", endpoint.ID, err)
	}
	return nil
}

// Release frees one slot on the endpoint.
func (b *Bounded) Release(user models.AuthenticatedUser, endpoint models.Endpoint) {
	b.semaphoreFor(endpoint).Release(1)
}
