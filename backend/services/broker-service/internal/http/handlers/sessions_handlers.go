package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"gatebroker/backend/services/broker-service/internal/auth"
	"gatebroker/backend/services/broker-service/internal/http/middleware"
	"gatebroker/backend/services/broker-service/internal/models"
	"gatebroker/backend/services/broker-service/internal/service"
)

const adminRole = "admin"

// EndpointLookup resolves endpoints and groups by ID.
type EndpointLookup interface {
	Get(ctx context.Context, id string) (*models.Endpoint, error)
	GetGroup(ctx context.Context, id string) (*models.EndpointGroup, error)
}

// HistoryLister lists completed sessions.
type HistoryLister interface {
	ListByEndpoint(ctx context.Context, endpointID string, limit int) ([]models.HistoryEntry, error)
}

// SessionBroker is the read side of the broker plus the group extension point.
type SessionBroker interface {
	ActiveSessions(endpoint models.Endpoint) []models.SessionRecord
	AllActiveSessions() map[string][]models.SessionRecord
	OpenGroupSession(ctx context.Context, user models.AuthenticatedUser, group models.EndpointGroup, info models.ClientInfo) (*service.Handle, error)
	GroupActiveSessions(group models.EndpointGroup) []models.SessionRecord
}

// MirrorLister lists sessions published by every replica.
type MirrorLister interface {
	List(ctx context.Context, endpointID string) (map[string]models.SessionRecord, error)
}

// SessionsHandlers serve session lifecycle endpoints.
type SessionsHandlers struct {
	endpoints EndpointLookup
	broker    SessionBroker
	table     *service.HandleTable
	history   HistoryLister
	mirror    MirrorLister
	logger    *zap.Logger
}

// NewSessionsHandlers returns handler set. mirror may be nil.
func NewSessionsHandlers(
	endpoints EndpointLookup,
	broker SessionBroker,
	table *service.HandleTable,
	history HistoryLister,
	mirror MirrorLister,
	logger *zap.Logger,
) *SessionsHandlers {
	return &SessionsHandlers{
		endpoints: endpoints,
		broker:    broker,
		table:     table,
		history:   history,
		mirror:    mirror,
		logger:    logger,
	}
}

type openSessionRequest struct {
	Password string            `json:"password"`
	Client   models.ClientInfo `json:"client"`
}

type openSessionResponse struct {
	HandleID string               `json:"handle_id"`
	TunnelID string               `json:"tunnel_id"`
	Session  models.SessionRecord `json:"session"`
}

// Open handles POST /endpoints/{id}/sessions.
func (h *SessionsHandlers) Open(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	req, err := decodeOpenRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	endpoint, err := h.endpoints.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "endpoint lookup failed", err)
		return
	}

	user := authenticatedUser(r, claims, req.Password)
	id, handle, err := h.table.Open(r.Context(), user, *endpoint, req.Client)
	if err != nil {
		h.fail(w, "open session failed", err, zap.String("endpoint_id", endpoint.ID))
		return
	}

	writeJSON(w, http.StatusCreated, openSessionResponse{
		HandleID: id,
		TunnelID: handle.Conn().ID(),
		Session:  handle.Record(),
	})
}

// Close handles DELETE /sessions/{id}. Only the owner or an admin may close.
func (h *SessionsHandlers) Close(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	id := r.PathValue("id")
	handle, found := h.table.Get(id)
	if !found {
		writeError(w, http.StatusNotFound, service.ErrHandleNotFound.Error())
		return
	}
	if !mayControl(claims, handle.Record()) {
		writeError(w, http.StatusForbidden, "session belongs to another user")
		return
	}

	if err := h.table.Close(r.Context(), id); err != nil {
		h.fail(w, "close session failed", err, zap.String("handle_id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Active handles GET /endpoints/{id}/active.
func (h *SessionsHandlers) Active(w http.ResponseWriter, r *http.Request) {
	endpoint, err := h.endpoints.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "endpoint lookup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": h.broker.ActiveSessions(*endpoint),
	})
}

// ClusterActive handles GET /endpoints/{id}/active/cluster.
func (h *SessionsHandlers) ClusterActive(w http.ResponseWriter, r *http.Request) {
	if h.mirror == nil {
		writeError(w, http.StatusNotImplemented, "no session mirror configured")
		return
	}
	sessions, err := h.mirror.List(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "mirror lookup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// History handles GET /endpoints/{id}/history?limit=N.
func (h *SessionsHandlers) History(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := h.history.ListByEndpoint(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		h.fail(w, "history lookup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}

// GroupOpen handles POST /groups/{id}/sessions.
func (h *SessionsHandlers) GroupOpen(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	req, err := decodeOpenRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	group, err := h.endpoints.GetGroup(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "group lookup failed", err)
		return
	}

	handle, err := h.broker.OpenGroupSession(r.Context(), authenticatedUser(r, claims, req.Password), *group, req.Client)
	if err != nil {
		h.fail(w, "open group session failed", err, zap.String("group_id", group.ID))
		return
	}

	id := h.table.Adopt(r.Context(), handle)
	writeJSON(w, http.StatusCreated, openSessionResponse{
		HandleID: id,
		TunnelID: handle.Conn().ID(),
		Session:  handle.Record(),
	})
}

// All handles GET /sessions: every active session on this replica. Admins only.
func (h *SessionsHandlers) All(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	if claims.Role != adminRole {
		writeError(w, http.StatusForbidden, "admin role required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"endpoints": h.broker.AllActiveSessions(),
	})
}

// GroupActive handles GET /groups/{id}/active.
func (h *SessionsHandlers) GroupActive(w http.ResponseWriter, r *http.Request) {
	group, err := h.endpoints.GetGroup(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "group lookup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": h.broker.GroupActiveSessions(*group),
	})
}

func (h *SessionsHandlers) fail(w http.ResponseWriter, msg string, err error, fields ...zap.Field) {
	status := statusFor(err)
	fields = append(fields, zap.Int("status", status), zap.Error(err))
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, fields...)
	} else {
		h.logger.Info(msg, fields...)
	}
	writeError(w, status, err.Error())
}

func mayControl(claims *auth.Claims, record models.SessionRecord) bool {
	return record.UserID == claims.UserID || claims.Role == adminRole
}

func decodeOpenRequest(r *http.Request) (openSessionRequest, error) {
	var req openSessionRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if errors.Is(err, io.EOF) {
		return req, nil
	}
	return req, err
}

func authenticatedUser(r *http.Request, claims *auth.Claims, password string) models.AuthenticatedUser {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	return models.AuthenticatedUser{
		User: claims.User(),
		Credentials: models.Credentials{
			Username:      claims.Username,
			Password:      password,
			RemoteAddress: remote,
		},
	}
}
