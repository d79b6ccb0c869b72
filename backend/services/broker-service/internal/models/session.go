package models

import "time"

// SessionRecord tracks one use of an endpoint by a user. EndDate stays zero
// while the session is active.
type SessionRecord struct {
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	EndpointID string    `json:"endpoint_id"`
	RemoteHost string    `json:"remote_host,omitempty"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date,omitempty"`
}

// Active reports whether the session has not been closed yet.
func (r SessionRecord) Active() bool {
	return r.EndDate.IsZero()
}

// HistoryEntry is the persisted audit row of a completed session.
type HistoryEntry struct {
	ID         int64     `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	Username   string    `db:"username" json:"username"`
	EndpointID string    `db:"endpoint_id" json:"endpoint_id"`
	StartDate  time.Time `db:"start_date" json:"start_date"`
	EndDate    time.Time `db:"end_date" json:"end_date"`
}
