package policy

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"gatebroker/backend/services/broker-service/internal/brokererr"
	"gatebroker/backend/services/broker-service/internal/config"
)

// Policy kinds accepted in configuration.
const (
	KindUnrestricted = "unrestricted"
	KindExclusive    = "exclusive"
	KindBounded      = "bounded"
	KindPerUser      = "per-user"
	KindRedis        = "redis"
)

// Option tunes policies built by FromConfig.
type Option func(*factory)

// WithReleaseErrorHandler sets OnReleaseError on every redis policy built.
func WithReleaseErrorHandler(fn func(endpointID string, err error)) Option {
	return func(f *factory) { f.onReleaseError = fn }
}

type factory struct {
	client         redis.Scripter
	onReleaseError func(endpointID string, err error)
}

// FromConfig builds the configured policy. When overrides are present the
// result is a Router; client may be nil unless a rule asks for the redis kind.
func FromConfig(cfg config.PolicyConfig, client redis.Scripter, opts ...Option) (Policy, error) {
	f := &factory{client: client}
	for _, opt := range opts {
		opt(f)
	}

	fallback, err := f.fromRule(cfg.PolicyRule)
	if err != nil {
		return nil, err
	}
	if len(cfg.Overrides) == 0 {
		return fallback, nil
	}

	overrides := make(map[string]Policy, len(cfg.Overrides))
	for endpointID, rule := range cfg.Overrides {
		p, err := f.fromRule(rule)
		if err != nil {
			return nil, fmt.Errorf("policy override %q: %w", endpointID, err)
		}
		overrides[endpointID] = p
	}
	return NewRouter(fallback, overrides), nil
}

func (f *factory) fromRule(rule config.PolicyRule) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(rule.Kind)) {
	case KindUnrestricted:
		return NewUnrestricted(), nil
	case "", KindExclusive:
		return NewExclusive(rule.Blocking), nil
	case KindBounded:
		return NewBounded(rule.Limit, rule.Blocking), nil
	case KindPerUser:
		return NewPerUser(), nil
	case KindRedis:
		if f.client == nil {
			return nil, fmt.Errorf("%w: redis policy needs a redis address", brokererr.ErrConfiguration)
		}
		if rule.Blocking {
			return nil, fmt.Errorf("%w: redis policy cannot block", brokererr.ErrConfiguration)
		}
		p := NewRedisBounded(f.client, rule.Limit)
		p.OnReleaseError = f.onReleaseError
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown policy kind %q", brokererr.ErrConfiguration, rule.Kind)
	}
}
