package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gatebroker/backend/services/broker-service/internal/brokererr"
	"gatebroker/backend/services/broker-service/internal/config"
	"gatebroker/backend/services/broker-service/internal/models"
	"gatebroker/backend/services/broker-service/internal/policy"
	"gatebroker/backend/services/broker-service/internal/registry"
	"gatebroker/backend/services/broker-service/internal/token"
	"gatebroker/backend/services/broker-service/internal/transport"
)

// ParameterStore returns the connection parameters of an endpoint.
type ParameterStore interface {
	SelectParameters(ctx context.Context, endpointID string) ([]models.Parameter, error)
}

// HistoryStore persists completed sessions.
type HistoryStore interface {
	Insert(ctx context.Context, entry *models.HistoryEntry) error
}

// PropertyProvider resolves required settings by key.
type PropertyProvider interface {
	GetRequiredProperty(key string) (string, error)
}

// Deps are the collaborators of a Broker. Now defaults to time.Now.
type Deps struct {
	Parameters ParameterStore
	History    HistoryStore
	Properties PropertyProvider
	Connector  transport.Connector
	Policy     policy.Policy
	Registry   *registry.Registry
	Now        func() time.Time
}

// Broker opens tunnels to endpoints on behalf of users, subject to the
// admission policy, and records each completed session.
//
// The broker does not log; callers decide what to report.
type Broker struct {
	parameters ParameterStore
	history    HistoryStore
	properties PropertyProvider
	connector  transport.Connector
	policy     policy.Policy
	registry   *registry.Registry
	now        func() time.Time
}

// NewBroker builds a broker from deps.
func NewBroker(deps Deps) *Broker {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Broker{
		parameters: deps.Parameters,
		history:    deps.History,
		properties: deps.Properties,
		connector:  deps.Connector,
		policy:     deps.Policy,
		registry:   deps.Registry,
		now:        now,
	}
}

// OpenSession reserves endpoint for user and opens a tunnel to it.
//
// A policy refusal is returned as is and leaves nothing behind. If the
// tunnel cannot be opened after the reservation succeeded, the session is
// unregistered and the reservation released before the error is returned.
func (b *Broker) OpenSession(ctx context.Context, user models.AuthenticatedUser, endpoint models.Endpoint, info models.ClientInfo) (*Handle, error) {
	cfg, err := b.configure(ctx, user, endpoint)
	if err != nil {
		return nil, err
	}

	if err := b.policy.Acquire(ctx, user, endpoint); err != nil {
		return nil, err
	}

	record := &models.SessionRecord{
		UserID:     user.User.ID,
		Username:   user.User.Username,
		EndpointID: endpoint.ID,
		RemoteHost: user.Credentials.RemoteAddress,
		StartDate:  b.now(),
	}
	b.registry.Add(endpoint.ID, record)

	conn, err := b.connect(ctx, cfg, info)
	if err != nil {
		b.registry.Remove(endpoint.ID, record)
		b.policy.Release(user, endpoint)
		return nil, err
	}

	return &Handle{
		broker:   b,
		user:     user,
		endpoint: endpoint,
		record:   record,
		conn:     conn,
	}, nil
}

// ActiveSessions lists the sessions currently holding endpoint, newest first.
func (b *Broker) ActiveSessions(endpoint models.Endpoint) []models.SessionRecord {
	return b.registry.List(endpoint.ID)
}

// AllActiveSessions lists active sessions of every endpoint.
func (b *Broker) AllActiveSessions() map[string][]models.SessionRecord {
	return b.registry.Snapshot()
}

// OpenGroupSession would pick an endpoint of group and open a session on it.
// No group selection policy exists yet.
func (b *Broker) OpenGroupSession(ctx context.Context, user models.AuthenticatedUser, group models.EndpointGroup, info models.ClientInfo) (*Handle, error) {
	return nil, fmt.Errorf("%w: sessions on endpoint group %q", brokererr.ErrUnsupported, group.ID)
}

// GroupActiveSessions lists sessions opened through group. Always empty
// until group sessions exist.
func (b *Broker) GroupActiveSessions(group models.EndpointGroup) []models.SessionRecord {
	return []models.SessionRecord{}
}

func (b *Broker) configure(ctx context.Context, user models.AuthenticatedUser, endpoint models.Endpoint) (*transport.Configuration, error) {
	params, err := b.parameters.SelectParameters(ctx, endpoint.ID)
	if err != nil {
		return nil, fmt.Errorf("broker: parameters of %q: %w", endpoint.ID, err)
	}

	cfg := transport.NewConfiguration(endpoint.Protocol)
	for _, p := range params {
		cfg.SetParameter(p.Name, p.Value)
	}

	filter := token.NewFilter()
	token.AddStandardTokens(filter, user.Credentials, b.now())
	filter.FilterValues(cfg.Parameters)

	return cfg, nil
}

func (b *Broker) connect(ctx context.Context, cfg *transport.Configuration, info models.ClientInfo) (transport.Conn, error) {
	host, err := b.properties.GetRequiredProperty(config.PropertyProxyHostname)
	if err != nil {
		return nil, err
	}
	rawPort, err := b.properties.GetRequiredProperty(config.PropertyProxyPort)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(rawPort)
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("%w: property %q is not a port: %q", brokererr.ErrConfiguration, config.PropertyProxyPort, rawPort)
	}

	return b.connector.Open(ctx, host, port, cfg, info)
}
