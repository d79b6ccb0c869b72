package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"gatebroker/backend/services/broker-service/internal/service"
	"gatebroker/backend/services/broker-service/internal/transport"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultPongWait     = 60 * time.Second
	defaultPingPeriod   = 30 * time.Second
	closeTimeout        = 15 * time.Second
	maxMessageSize      = 1 << 20
)

// ErrAttached is returned when a session already has a client relaying it.
var ErrAttached = errors.New("relay: session already attached")

// SessionCloser ends a session by handle ID.
type SessionCloser interface {
	Close(ctx context.Context, id string) error
}

// Relay copies messages between a client WebSocket and an open tunnel. When
// either side goes away the session is closed through SessionCloser.
type Relay struct {
	sessions     SessionCloser
	logger       *zap.Logger
	writeTimeout time.Duration
	pongWait     time.Duration
	pingPeriod   time.Duration

	mu       sync.Mutex
	attached map[string]struct{}
}

// New builds a relay.
func New(sessions SessionCloser, logger *zap.Logger) *Relay {
	return &Relay{
		sessions:     sessions,
		logger:       logger,
		writeTimeout: defaultWriteTimeout,
		pongWait:     defaultPongWait,
		pingPeriod:   defaultPingPeriod,
		attached:     make(map[string]struct{}),
	}
}

// Attach reserves the session for one client. It must be followed by Pipe or
// Detach.
func (r *Relay) Attach(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.attached[id]; ok {
		return ErrAttached
	}
	r.attached[id] = struct{}{}
	return nil
}

// Detach drops a reservation made by Attach.
func (r *Relay) Detach(id string) {
	r.mu.Lock()
	delete(r.attached, id)
	r.mu.Unlock()
}

// Pipe relays until the client or the tunnel closes, then closes the session
// and the client socket. It blocks for the lifetime of the relay.
func (r *Relay) Pipe(id string, tunnel transport.Conn, client *websocket.Conn) {
	defer r.Detach(id)

	c := &clientConn{ws: client, writeTimeout: r.writeTimeout}
	client.SetReadLimit(maxMessageSize)
	client.SetReadDeadline(time.Now().Add(r.pongWait))
	client.SetPongHandler(func(string) error {
		client.SetReadDeadline(time.Now().Add(r.pongWait))
		return nil
	})

	stop := make(chan struct{})
	done := make(chan string, 2)
	go func() { done <- r.upstream(c, tunnel) }()
	go func() { done <- r.downstream(tunnel, c) }()
	go r.ping(c, stop)

	reason := <-done
	close(stop)

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	err := r.sessions.Close(ctx, id)
	cancel()
	if err != nil && !errors.Is(err, service.ErrHandleNotFound) {
		r.logger.Warn("session close after relay failed", zap.String("handle_id", id), zap.Error(err))
	}

	c.close()
	<-done
	r.logger.Info("relay finished", zap.String("handle_id", id), zap.String("reason", reason))
}

// upstream copies client messages into the tunnel.
func (r *Relay) upstream(c *clientConn, tunnel transport.Conn) string {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return "client closed"
		}
		if err := tunnel.WriteMessage(data); err != nil {
			return "tunnel write failed"
		}
	}
}

// downstream copies tunnel messages to the client.
func (r *Relay) downstream(tunnel transport.Conn, c *clientConn) string {
	for {
		data, err := tunnel.ReadMessage()
		if err != nil {
			return "tunnel closed"
		}
		if err := c.write(websocket.TextMessage, data); err != nil {
			return "client write failed"
		}
	}
}

func (r *Relay) ping(c *clientConn, stop <-chan struct{}) {
	ticker := time.NewTicker(r.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type clientConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

func (c *clientConn) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

func (c *clientConn) close() {
	c.mu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
	c.mu.Unlock()
	_ = c.ws.Close()
}
