package repository

import (
	"context"
	"database/sql"
	"fmt"

	"gatebroker/backend/services/broker-service/internal/brokererr"
	"gatebroker/backend/services/broker-service/internal/models"
)

// ParameterRepository reads endpoint connection parameters.
type ParameterRepository struct {
	db *sql.DB
}

// NewParameterRepository returns repository.
func NewParameterRepository(db *sql.DB) *ParameterRepository {
	return &ParameterRepository{db: db}
}

// SelectParameters returns the parameters of an endpoint ordered by name.
func (r *ParameterRepository) SelectParameters(ctx context.Context, endpointID string) ([]models.Parameter, error) {
	const query = `
		SELECT parameter_name, parameter_value
		FROM endpoint_parameters
		WHERE endpoint_id = $1
		ORDER BY parameter_name
	`
	rows, err := r.db.QueryContext(ctx, query, endpointID)
	if err != nil {
		return nil, fmt.Errorf("%w: parameters of %q: %w", brokererr.ErrPersistence, endpointID, err)
	}
	defer rows.Close()

	var params []models.Parameter
	for rows.Next() {
		var p models.Parameter
		if err := rows.Scan(&p.Name, &p.Value); err != nil {
			return nil, fmt.Errorf("%w: scan parameter: %w", brokererr.ErrPersistence, err)
		}
		params = append(params, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: parameters of %q: %w", brokererr.ErrPersistence, endpointID, err)
	}
	return params, nil
}
