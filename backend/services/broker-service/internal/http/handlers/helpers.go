package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"gatebroker/backend/services/broker-service/internal/brokererr"
	"gatebroker/backend/services/broker-service/internal/repository"
	"gatebroker/backend/services/broker-service/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps broker errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, brokererr.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrEndpointNotFound),
		errors.Is(err, repository.ErrGroupNotFound),
		errors.Is(err, service.ErrHandleNotFound):
		return http.StatusNotFound
	case errors.Is(err, brokererr.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, brokererr.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
