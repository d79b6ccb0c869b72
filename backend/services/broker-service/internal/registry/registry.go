package registry

import (
	"fmt"
	"sync"

	"gatebroker/backend/services/broker-service/internal/models"
)

// Registry tracks which session records currently hold each endpoint.
//
// An endpoint appears in the table only while it has at least one record.
// No method blocks or calls out while holding the lock.
type Registry struct {
	mu     sync.Mutex
	active map[string][]*models.SessionRecord
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{active: make(map[string][]*models.SessionRecord)}
}

// Add registers record as holding endpointID. Newest records come first.
func (r *Registry) Add(endpointID string, record *models.SessionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := r.active[endpointID]
	updated := make([]*models.SessionRecord, 0, len(records)+1)
	updated = append(updated, record)
	updated = append(updated, records...)
	r.active[endpointID] = updated
}

// Remove drops record from endpointID. It panics if the record was never
// added, since that means the caller lost track of its own session.
func (r *Registry) Remove(endpointID string, record *models.SessionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, ok := r.active[endpointID]
	if !ok {
		panic(fmt.Sprintf("registry: no active sessions for endpoint %q", endpointID))
	}

	idx := -1
	for i, candidate := range records {
		if candidate == record {
			idx = i
			break
		}
	}
	if idx < 0 {
		panic(fmt.Sprintf("registry: record not registered for endpoint %q", endpointID))
	}

	if len(records) == 1 {
		delete(r.active, endpointID)
		return
	}

	updated := make([]*models.SessionRecord, 0, len(records)-1)
	updated = append(updated, records[:idx]...)
	updated = append(updated, records[idx+1:]...)
	r.active[endpointID] = updated
}

// List returns a copy of the records holding endpointID, newest first.
func (r *Registry) List(endpointID string) []models.SessionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyRecords(r.active[endpointID])
}

// Snapshot returns a copy of the whole table.
func (r *Registry) Snapshot() map[string][]models.SessionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[string][]models.SessionRecord, len(r.active))
	for endpointID, records := range r.active {
		snapshot[endpointID] = copyRecords(records)
	}
	return snapshot
}

func copyRecords(records []*models.SessionRecord) []models.SessionRecord {
	out := make([]models.SessionRecord, 0, len(records))
	for _, record := range records {
		out = append(out, *record)
	}
	return out
}
