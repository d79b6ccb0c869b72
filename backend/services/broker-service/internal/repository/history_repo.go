package repository

import (
	"context"
	"database/sql"
	"fmt"

	"gatebroker/backend/services/broker-service/internal/brokererr"
	"gatebroker/backend/services/broker-service/internal/models"
)

// HistoryRepository stores completed sessions.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository returns repository.
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Insert writes entry and fills in its ID.
func (r *HistoryRepository) Insert(ctx context.Context, entry *models.HistoryEntry) error {
	const query = `
		INSERT INTO endpoint_history (user_id, username, endpoint_id, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		entry.UserID,
		entry.Username,
		entry.EndpointID,
		entry.StartDate,
		entry.EndDate,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("%w: insert history for %q: %w", brokererr.ErrPersistence, entry.EndpointID, err)
	}
	return nil
}

// ListByEndpoint returns the last N completed sessions of an endpoint.
func (r *HistoryRepository) ListByEndpoint(ctx context.Context, endpointID string, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, user_id, username, endpoint_id, start_date, end_date
		FROM endpoint_history
		WHERE endpoint_id = $1
		ORDER BY start_date DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, endpointID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: history of %q: %w", brokererr.ErrPersistence, endpointID, err)
	}
	defer rows.Close()

	entries := []models.HistoryEntry{}
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Username,
			&e.EndpointID,
			&e.StartDate,
			&e.EndDate,
		); err != nil {
			return nil, fmt.Errorf("%w: scan history: %w", brokererr.ErrPersistence, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: history of %q: %w", brokererr.ErrPersistence, endpointID, err)
	}
	return entries, nil
}
