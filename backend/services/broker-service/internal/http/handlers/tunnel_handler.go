package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"gatebroker/backend/services/broker-service/internal/http/middleware"
	"gatebroker/backend/services/broker-service/internal/relay"
	"gatebroker/backend/services/broker-service/internal/service"
)

// TunnelHandler upgrades GET /sessions/{id}/tunnel to a WebSocket and relays
// it to the session's tunnel. Only the owner or an admin may attach.
type TunnelHandler struct {
	table    *service.HandleTable
	relay    *relay.Relay
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewTunnelHandler builds the relay endpoint.
func NewTunnelHandler(table *service.HandleTable, r *relay.Relay, logger *zap.Logger) *TunnelHandler {
	return &TunnelHandler{
		table:  table,
		relay:  r,
		logger: logger,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *TunnelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	if err := h.relay.Attach(id); err != nil {
		if errors.Is(err, relay.ErrAttached) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.relay.Detach(id)
		h.logger.Warn("tunnel upgrade failed", zap.String("handle_id", id), zap.Error(err))
		return
	}

	h.logger.Info("tunnel attached", zap.String("handle_id", id), zap.String("username", claims.Username))
	h.relay.Pipe(id, handle.Conn(), ws)
}
