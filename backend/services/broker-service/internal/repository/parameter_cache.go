package repository

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"gatebroker/backend/services/broker-service/internal/models"
)

// ParameterSource is anything that can list endpoint parameters.
type ParameterSource interface {
	SelectParameters(ctx context.Context, endpointID string) ([]models.Parameter, error)
}

// CachedParameterStore keeps parameter lists in memory for ttl. Callers get
// their own copy since the broker filters values in place.
type CachedParameterStore struct {
	source ParameterSource
	cache  *cache.Cache
	ttl    time.Duration
}

// NewCachedParameterStore wraps source.
func NewCachedParameterStore(source ParameterSource, ttl time.Duration) *CachedParameterStore {
	return &CachedParameterStore{
		source: source,
		cache:  cache.New(ttl, 2*ttl),
		ttl:    ttl,
	}
}

// SelectParameters returns cached parameters or loads them from the source.
func (s *CachedParameterStore) SelectParameters(ctx context.Context, endpointID string) ([]models.Parameter, error) {
	if cached, found := s.cache.Get(endpointID); found {
		return copyParameters(cached.([]models.Parameter)), nil
	}

	params, err := s.source.SelectParameters(ctx, endpointID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(endpointID, copyParameters(params), s.ttl)
	return params, nil
}

// Invalidate drops the cached parameters of an endpoint.
func (s *CachedParameterStore) Invalidate(endpointID string) {
	s.cache.Delete(endpointID)
}

func copyParameters(params []models.Parameter) []models.Parameter {
	out := make([]models.Parameter, len(params))
	copy(out, params)
	return out
}
