package policy

import (
	"context"
	"fmt"
	"sync"

	"gatebroker/backend/services/broker-service/internal/brokererr"
	"gatebroker/backend/services/broker-service/internal/models"
)

type seat struct {
	endpointID string
	username   string
}

// PerUser lets any number of users share an endpoint but each user may hold
// it only once at a time.
type PerUser struct {
	mu   sync.Mutex
	held map[seat]struct{}
}

// NewPerUser returns an empty per-user policy.
func NewPerUser() *PerUser {
	return &PerUser{held: make(map[seat]struct{})}
}

// Acquire refuses a user who already holds the endpoint.
func (p *PerUser) Acquire(_ context.Context, user models.AuthenticatedUser, endpoint models.Endpoint) error {
	key := seat{endpointID: endpoint.ID, username: user.User.Username}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.held[key]; ok {
		return fmt.Errorf("%w: %s already holds endpoint %q", brokererr.ErrAccessDenied, key.username, endpoint.ID)
	}
	p.held[key] = struct{}{}
	return nil
}

// Release frees the user's seat.
func (p *PerUser) Release(user models.AuthenticatedUser, endpoint models.Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.held, seat{endpointID: endpoint.ID, username: user.User.Username})
}
