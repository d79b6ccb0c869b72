package httpserver

import (
	"net/http"

	"gatebroker/backend/services/broker-service/internal/http/handlers"
	"gatebroker/backend/services/broker-service/internal/http/middleware"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	Login    http.HandlerFunc
	Sessions *handlers.SessionsHandlers
	Tunnel   http.Handler
	Health   http.HandlerFunc
}

// NewRouter registers endpoints. Everything except login and health needs a
// bearer token.
func NewRouter(deps RouterDeps, authMiddleware func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	if deps.Health != nil {
		mux.Handle("/health", method(http.MethodGet, deps.Health))
	}
	if deps.Login != nil {
		mux.Handle("/auth/login", method(http.MethodPost, deps.Login))
	}

	authenticated := func(handler http.Handler) http.Handler {
		return middleware.Chain(handler, authMiddleware)
	}

	if s := deps.Sessions; s != nil {
		mux.Handle("/sessions", method(http.MethodGet, authenticated(http.HandlerFunc(s.All))))
		mux.Handle("/endpoints/{id}/sessions", method(http.MethodPost, authenticated(http.HandlerFunc(s.Open))))
		mux.Handle("/endpoints/{id}/active", method(http.MethodGet, authenticated(http.HandlerFunc(s.Active))))
		mux.Handle("/endpoints/{id}/active/cluster", method(http.MethodGet, authenticated(http.HandlerFunc(s.ClusterActive))))
		mux.Handle("/endpoints/{id}/history", method(http.MethodGet, authenticated(http.HandlerFunc(s.History))))
		mux.Handle("/sessions/{id}", method(http.MethodDelete, authenticated(http.HandlerFunc(s.Close))))
		mux.Handle("/groups/{id}/sessions", method(http.MethodPost, authenticated(http.HandlerFunc(s.GroupOpen))))
		mux.Handle("/groups/{id}/active", method(http.MethodGet, authenticated(http.HandlerFunc(s.GroupActive))))
	}
	if deps.Tunnel != nil {
		mux.Handle("/sessions/{id}/tunnel", method(http.MethodGet, authenticated(deps.Tunnel)))
	}
	return mux
}

func method(expected string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
