// Package policy decides whether a user may take hold of an endpoint.
//
// Policies only count holders. Which sessions hold an endpoint is tracked by
// the registry, and the broker keeps the two consistent.
package policy

import (
	"context"

	"gatebroker/backend/services/broker-service/internal/models"
)

// Policy grants and releases units of access to endpoints.
//
// Acquire may block until capacity is available or fail at once with an
// error wrapping brokererr.ErrAccessDenied, depending on the variant. Every
// successful Acquire must be matched by exactly one Release; releasing a
// hold that was never granted is undefined.
type Policy interface {
	Acquire(ctx context.Context, user models.AuthenticatedUser, endpoint models.Endpoint) error
	Release(user models.AuthenticatedUser, endpoint models.Endpoint)
}

// Unrestricted grants every request.
type Unrestricted struct{}

// NewUnrestricted returns a policy without limits.
func NewUnrestricted() Unrestricted { return Unrestricted{} }

// Acquire always succeeds.
func (Unrestricted) Acquire(context.Context, models.AuthenticatedUser, models.Endpoint) error {
	return nil
}

// Release is a no-op.
func (Unrestricted) Release(models.AuthenticatedUser, models.Endpoint) {}

// Router sends each endpoint to its own policy, falling back to a default.
type Router struct {
	fallback  Policy
	overrides map[string]Policy
}

// NewRouter builds a router. overrides is keyed by endpoint ID.
func NewRouter(fallback Policy, overrides map[string]Policy) *Router {
	copied := make(map[string]Policy, len(overrides))
	for id, p := range overrides {
		copied[id] = p
	}
	return &Router{fallback: fallback, overrides: copied}
}

func (r *Router) policyFor(endpoint models.Endpoint) Policy {
	if p, ok := r.overrides[endpoint.ID]; ok {
		return p
	}
	return r.fallback
}

// Acquire delegates to the endpoint's policy.
func (r *Router) Acquire(ctx context.Context, user models.AuthenticatedUser, endpoint models.Endpoint) error {
	return r.policyFor(endpoint).Acquire(ctx, user, endpoint)
}

// Release delegates to the endpoint's policy.
func (r *Router) Release(user models.AuthenticatedUser, endpoint models.Endpoint) {
	r.policyFor(endpoint).Release(user, endpoint)
}
