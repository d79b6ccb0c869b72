package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gatebroker/backend/services/broker-service/internal/brokererr"
	"gatebroker/backend/services/broker-service/internal/models"
)

const (
	defaultConnectPath      = "/connect"
	defaultHandshakeTimeout = 10 * time.Second
	closeWriteWait          = time.Second

	statusReady = "ready"
)

// Handshake is the first message sent on a new tunnel.
type Handshake struct {
	Protocol   string            `json:"protocol"`
	Parameters map[string]string `json:"parameters"`
	Client     models.ClientInfo `json:"client"`
}

// HandshakeReply is the proxy's answer to a Handshake.
type HandshakeReply struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// WebSocketConnector opens tunnels as WebSocket connections to the proxy.
type WebSocketConnector struct {
	dialer           *websocket.Dialer
	path             string
	handshakeTimeout time.Duration
}

// NewWebSocketConnector returns a connector using the default dialer.
func NewWebSocketConnector() *WebSocketConnector {
	return &WebSocketConnector{
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		path:             defaultConnectPath,
		handshakeTimeout: defaultHandshakeTimeout,
	}
}

// Open dials the proxy, sends the configuration and waits until the proxy
// reports the tunnel ready.
func (c *WebSocketConnector) Open(ctx context.Context, host string, port int, cfg *Configuration, info models.ClientInfo) (Conn, error) {
	target := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   c.path,
	}

	ws, resp, err := c.dialer.DialContext(ctx, target.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", brokererr.ErrTransport, target.Host, err)
	}

	reply, err := c.handshake(ws, cfg, info)
	if err != nil {
		ws.Close()
		return nil, err
	}

	return &wsConn{id: reply.ID, ws: ws}, nil
}

func (c *WebSocketConnector) handshake(ws *websocket.Conn, cfg *Configuration, info models.ClientInfo) (HandshakeReply, error) {
	deadline := time.Now().Add(c.handshakeTimeout)
	ws.SetWriteDeadline(deadline)
	ws.SetReadDeadline(deadline)

	msg := Handshake{Protocol: cfg.Protocol, Parameters: cfg.Parameters, Client: info}
	if err := ws.WriteJSON(msg); err != nil {
		return HandshakeReply{}, fmt.Errorf("%w: send handshake: %w", brokererr.ErrTransport, err)
	}

	var reply HandshakeReply
	if err := ws.ReadJSON(&reply); err != nil {
		return HandshakeReply{}, fmt.Errorf("%w: read handshake reply: %w", brokererr.ErrTransport, err)
	}
	if reply.Status != statusReady {
		return HandshakeReply{}, fmt.Errorf("%w: proxy refused tunnel: %s", brokererr.ErrTransport, reply.Error)
	}

	ws.SetWriteDeadline(time.Time{})
	ws.SetReadDeadline(time.Time{})
	return reply, nil
}

type wsConn struct {
	id string
	ws *websocket.Conn

	writeMu sync.Mutex
}

func (c *wsConn) ID() string {
	return c.id
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("%w: read: %w", brokererr.ErrTransport, err)
	}
	return data, nil
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: write: %w", brokererr.ErrTransport, err)
	}
	return nil
}

// Close says goodbye with a normal closure frame and closes the socket.
func (c *wsConn) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	farewellErr := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
	if errors.Is(farewellErr, websocket.ErrCloseSent) {
		farewellErr = nil
	}

	if err := errors.Join(farewellErr, c.ws.Close()); err != nil {
		return fmt.Errorf("%w: close tunnel %s: %w", brokererr.ErrTransport, c.id, err)
	}
	return nil
}
