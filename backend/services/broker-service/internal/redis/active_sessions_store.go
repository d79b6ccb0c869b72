package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gatebroker/backend/services/broker-service/internal/brokererr"
	"gatebroker/backend/services/broker-service/internal/models"
)

// Store mirrors open sessions into Redis so that other replicas and tools can
// see them. Each endpoint is one hash keyed by handle ID.
type Store struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewStore returns redis-backed store.
func NewStore(client redis.Cmdable, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) key(endpointID string) string {
	return fmt.Sprintf("broker:active:%s", endpointID)
}

// Save publishes a session under its handle ID and refreshes the hash TTL.
func (s *Store) Save(ctx context.Context, handleID string, record models.SessionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	key := s.key(record.EndpointID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, handleID, data)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	return err
}

// Delete removes a session from the mirror.
func (s *Store) Delete(ctx context.Context, endpointID, handleID string) error {
	return s.client.HDel(ctx, s.key(endpointID), handleID).Err()
}

// List returns the mirrored sessions of an endpoint keyed by handle ID.
func (s *Store) List(ctx context.Context, endpointID string) (map[string]models.SessionRecord, error) {
	raw, err := s.client.HGetAll(ctx, s.key(endpointID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list mirrored sessions of %q: %w", brokererr.ErrPersistence, endpointID, err)
	}
	out := make(map[string]models.SessionRecord, len(raw))
	for handleID, value := range raw {
		var record models.SessionRecord
		if err := json.Unmarshal([]byte(value), &record); err != nil {
			return nil, fmt.Errorf("%w: decode mirrored session %s: %w", brokererr.ErrPersistence, handleID, err)
		}
		out[handleID] = record
	}
	return out, nil
}
