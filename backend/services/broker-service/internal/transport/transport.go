package transport

import (
	"context"

	"gatebroker/backend/services/broker-service/internal/models"
)

// Connector opens tunnel connections through the proxy at host:port.
type Connector interface {
	Open(ctx context.Context, host string, port int, cfg *Configuration, info models.ClientInfo) (Conn, error)
}

// Conn is an open tunnel. Errors returned by Close wrap brokererr.ErrTransport.
type Conn interface {
	ID() string
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}
