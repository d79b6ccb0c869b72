package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gatebroker/backend/services/broker-service/internal/brokererr"
	"gatebroker/backend/services/broker-service/internal/models"
)

// ErrUserNotFound indicates an unknown username.
var ErrUserNotFound = errors.New("user not found")

// UserRepository reads broker accounts.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository returns repository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByUsername returns the account with the given username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.UserAccount, error) {
	const query = `
		SELECT id, username, role, password_hash
		FROM users
		WHERE username = $1
	`
	var u models.UserAccount
	err := r.db.QueryRowContext(ctx, query, username).Scan(&u.ID, &u.Username, &u.Role, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: user %q: %w", brokererr.ErrPersistence, username, err)
	}
	return &u, nil
}
