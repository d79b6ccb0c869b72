package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gatebroker/backend/services/broker-service/internal/brokererr"
	"gatebroker/backend/services/broker-service/internal/models"
)

const (
	acquireSource = `
local n = redis.call('INCR', KEYS[1])
if n > tonumber(ARGV[1]) then
	redis.call('DECR', KEYS[1])
	return 0
end
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1`

	releaseSource = `
local n = redis.call('DECR', KEYS[1])
if n <= 0 then
	redis.call('DEL', KEYS[1])
end
return n`

	defaultHoldTTL     = 12 * time.Hour
	defaultReleaseWait = 3 * time.Second
)

var (
	acquireScript = redis.NewScript(acquireSource)
	releaseScript = redis.NewScript(releaseSource)
)

// RedisBounded enforces a per-endpoint limit shared by every broker replica
// that points at the same Redis. It never blocks: a full endpoint is refused.
//
// Counters expire after HoldTTL so a crashed replica cannot pin an endpoint
// forever.
type RedisBounded struct {
	client  redis.Scripter
	limit   int
	prefix  string
	HoldTTL time.Duration
	// OnReleaseError is called when a release could not reach Redis.
	OnReleaseError func(endpointID string, err error)
}

// NewRedisBounded returns a Redis backed policy. A limit below one is treated as one.
func NewRedisBounded(client redis.Scripter, limit int) *RedisBounded {
	if limit < 1 {
		limit = 1
	}
	return &RedisBounded{
		client:  client,
		limit:   limit,
		prefix:  "broker:holds:",
		HoldTTL: defaultHoldTTL,
	}
}

func (p *RedisBounded) key(endpointID string) string {
	return p.prefix + endpointID
}

func (p *RedisBounded) limitFor(endpoint models.Endpoint) int {
	if endpoint.MaxConnections > 0 {
		return endpoint.MaxConnections
	}
	return p.limit
}

// Acquire increments the endpoint counter unless it is already at the limit.
func (p *RedisBounded) Acquire(ctx context.Context, user models.AuthenticatedUser, endpoint models.Endpoint) error {
	granted, err := acquireScript.Run(ctx, p.client,
		[]string{p.key(endpoint.ID)},
		p.limitFor(endpoint), p.HoldTTL.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("policy: redis acquire %q: %w", endpoint.ID, err)
	}
	if granted == 0 {
		return fmt.Errorf("%w: endpoint %q is at capacity", brokererr.ErrAccessDenied, endpoint.ID)
	}
	return nil
}

// Release decrements the endpoint counter.
func (p *RedisBounded) Release(user models.AuthenticatedUser, endpoint models.Endpoint) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultReleaseWait)
	defer cancel()

	err := releaseScript.Run(ctx, p.client, []string{p.key(endpoint.ID)}).Err()
	if err != nil && p.OnReleaseError != nil {
		p.OnReleaseError(endpoint.ID, err)
	}
}
