package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"gatebroker/backend/services/broker-service/internal/auth"
	"gatebroker/backend/services/broker-service/internal/models"
)

// Authenticator checks credentials and issues a token.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, *models.User, error)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// NewLoginHandler returns POST /auth/login handler.
func NewLoginHandler(svc Authenticator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}

		token, user, err := svc.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				writeError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			logger.Error("login failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "login failed")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"token": token,
			"user":  user,
		})
	}
}
