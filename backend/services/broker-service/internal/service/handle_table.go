package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gatebroker/backend/services/broker-service/internal/models"
)

// ErrHandleNotFound is returned for an unknown or already closed handle ID.
var ErrHandleNotFound = errors.New("session handle not found")

// ActiveMirror publishes open sessions outside the process.
type ActiveMirror interface {
	Save(ctx context.Context, handleID string, record models.SessionRecord) error
	Delete(ctx context.Context, endpointID, handleID string) error
}

// SessionOpener is the part of Broker used by HandleTable.
type SessionOpener interface {
	OpenSession(ctx context.Context, user models.AuthenticatedUser, endpoint models.Endpoint, info models.ClientInfo) (*Handle, error)
}

// HandleTable keeps open handles by ID so that a later request can close
// them.
type HandleTable struct {
	opener SessionOpener
	mirror ActiveMirror
	logger *zap.Logger

	mu      sync.Mutex
	handles map[string]*Handle
}

// NewHandleTable builds a table. mirror may be nil.
func NewHandleTable(opener SessionOpener, mirror ActiveMirror, logger *zap.Logger) *HandleTable {
	return &HandleTable{
		opener:  opener,
		mirror:  mirror,
		logger:  logger,
		handles: make(map[string]*Handle),
	}
}

// Open opens a session and stores its handle under a fresh ID.
func (t *HandleTable) Open(ctx context.Context, user models.AuthenticatedUser, endpoint models.Endpoint, info models.ClientInfo) (string, *Handle, error) {
	handle, err := t.opener.OpenSession(ctx, user, endpoint, info)
	if err != nil {
		return "", nil, err
	}
	return t.Adopt(ctx, handle), handle, nil
}

// Adopt stores a handle opened elsewhere, such as through an endpoint group,
// and returns its new ID.
//
// The mirror entry is written before the handle becomes visible, so a close
// racing with Adopt always deletes it afterwards.
func (t *HandleTable) Adopt(ctx context.Context, handle *Handle) string {
	id := uuid.NewString()
	record := handle.Record()

	if t.mirror != nil {
		if err := t.mirror.Save(ctx, id, record); err != nil {
			t.logger.Warn("failed to mirror active session", zap.String("handle_id", id), zap.Error(err))
		}
	}

	t.mu.Lock()
	t.handles[id] = handle
	t.mu.Unlock()

	t.logger.Info("session opened",
		zap.String("handle_id", id),
		zap.String("endpoint_id", record.EndpointID),
		zap.String("username", record.Username),
		zap.String("tunnel_id", handle.Conn().ID()),
	)
	return id
}

// Get returns the handle stored under id.
func (t *HandleTable) Get(id string) (*Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.handles[id]
	return h, ok
}

// Len returns the number of open handles.
func (t *HandleTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}

// Close closes and forgets the handle stored under id.
func (t *HandleTable) Close(ctx context.Context, id string) error {
	t.mu.Lock()
	handle, ok := t.handles[id]
	if ok {
		delete(t.handles, id)
	}
	t.mu.Unlock()

	if !ok {
		return ErrHandleNotFound
	}
	return t.closeHandle(ctx, id, handle)
}

// CloseAll closes every open handle. Errors are logged, not returned.
func (t *HandleTable) CloseAll(ctx context.Context) {
	t.mu.Lock()
	handles := t.handles
	t.handles = make(map[string]*Handle)
	t.mu.Unlock()

	for id, handle := range handles {
		if err := t.closeHandle(ctx, id, handle); err != nil {
			t.logger.Warn("session close failed during shutdown", zap.String("handle_id", id), zap.Error(err))
		}
	}
}

func (t *HandleTable) closeHandle(ctx context.Context, id string, handle *Handle) error {
	err := handle.CloseContext(ctx)
	record := handle.Record()

	if t.mirror != nil {
		if mErr := t.mirror.Delete(ctx, record.EndpointID, id); mErr != nil {
			t.logger.Warn("failed to drop mirrored session", zap.String("handle_id", id), zap.Error(mErr))
		}
	}

	t.logger.Info("session closed",
		zap.String("handle_id", id),
		zap.String("endpoint_id", record.EndpointID),
		zap.String("username", record.Username),
		zap.Duration("duration", record.EndDate.Sub(record.StartDate)),
		zap.Bool("clean", err == nil),
	)
	return err
}
