package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gatebroker/backend/services/broker-service/internal/brokererr"
	"gatebroker/backend/services/broker-service/internal/models"
	"gatebroker/backend/services/broker-service/internal/transport"
)

// Handle is an open session returned by Broker.OpenSession. It must be
// closed exactly once.
type Handle struct {
	broker   *Broker
	user     models.AuthenticatedUser
	endpoint models.Endpoint
	conn     transport.Conn

	mu     sync.Mutex
	record *models.SessionRecord
	once   sync.Once
}

// Conn returns the tunnel.
func (h *Handle) Conn() transport.Conn {
	return h.conn
}

// Endpoint returns the endpoint the session holds.
func (h *Handle) Endpoint() models.Endpoint {
	return h.endpoint
}

// Record returns a copy of the session record.
func (h *Handle) Record() models.SessionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return *h.record
}

// Close is CloseContext with a background context.
func (h *Handle) Close() error {
	return h.CloseContext(context.Background())
}

// CloseContext closes the tunnel, gives the endpoint back and writes the
// history entry. The registry and policy are always cleaned up, even when
// closing the tunnel fails; tunnel and history errors are returned together
// afterwards. Calls after the first do nothing.
func (h *Handle) CloseContext(ctx context.Context) error {
	var err error
	h.once.Do(func() {
		err = h.close(ctx)
	})
	return err
}

func (h *Handle) close(ctx context.Context) error {
	b := h.broker
	closeErr := h.conn.Close()

	b.registry.Remove(h.endpoint.ID, h.record)
	b.policy.Release(h.user, h.endpoint)

	h.mu.Lock()
	end := b.now()
	if end.Before(h.record.StartDate) {
		end = h.record.StartDate
	}
	h.record.EndDate = end
	entry := models.HistoryEntry{
		UserID:     h.record.UserID,
		Username:   h.record.Username,
		EndpointID: h.record.EndpointID,
		StartDate:  h.record.StartDate,
		EndDate:    h.record.EndDate,
	}
	h.mu.Unlock()

	var persistErr error
	if err := b.history.Insert(ctx, &entry); err != nil {
		persistErr = err
		if !errors.Is(err, brokererr.ErrPersistence) {
			persistErr = fmt.Errorf("%w: history of %q: %w", brokererr.ErrPersistence, entry.EndpointID, err)
		}
	}

	return errors.Join(closeErr, persistErr)
}
