package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gatebroker/backend/services/broker-service/internal/brokererr"
	"gatebroker/backend/services/broker-service/internal/models"
)

var (
	// ErrEndpointNotFound indicates an unknown endpoint identifier.
	ErrEndpointNotFound = errors.New("endpoint not found")
	// ErrGroupNotFound indicates an unknown endpoint group identifier.
	ErrGroupNotFound = errors.New("endpoint group not found")
)

// EndpointRepository reads endpoints and endpoint groups.
type EndpointRepository struct {
	db *sql.DB
}

// NewEndpointRepository returns repository.
func NewEndpointRepository(db *sql.DB) *EndpointRepository {
	return &EndpointRepository{db: db}
}

// Get returns the endpoint with the given identifier.
func (r *EndpointRepository) Get(ctx context.Context, id string) (*models.Endpoint, error) {
	const query = `
		SELECT id, name, protocol, COALESCE(group_id, ''), COALESCE(max_connections, 0)
		FROM endpoints
		WHERE id = $1
	`
	var e models.Endpoint
	err := r.db.QueryRowContext(ctx, query, id).Scan(&e.ID, &e.Name, &e.Protocol, &e.GroupID, &e.MaxConnections)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEndpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: endpoint %q: %w", brokererr.ErrPersistence, id, err)
	}
	return &e, nil
}

// GetGroup returns the endpoint group with the given identifier.
func (r *EndpointRepository) GetGroup(ctx context.Context, id string) (*models.EndpointGroup, error) {
	const query = `
		SELECT id, name, type
		FROM endpoint_groups
		WHERE id = $1
	`
	var g models.EndpointGroup
	err := r.db.QueryRowContext(ctx, query, id).Scan(&g.ID, &g.Name, &g.Type)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: endpoint group %q: %w", brokererr.ErrPersistence, id, err)
	}
	return &g, nil
}
