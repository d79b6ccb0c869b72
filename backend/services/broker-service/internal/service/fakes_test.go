package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gatebroker/backend/services/broker-service/internal/brokererr"
	"gatebroker/backend/services/broker-service/internal/config"
	"gatebroker/backend/services/broker-service/internal/models"
	"gatebroker/backend/services/broker-service/internal/policy"
	"gatebroker/backend/services/broker-service/internal/registry"
	"gatebroker/backend/services/broker-service/internal/transport"
)

type fakeParams struct {
	mu     sync.Mutex
	params map[string][]models.Parameter
	err    error
	calls  int
}

func (f *fakeParams) SelectParameters(_ context.Context, endpointID string) ([]models.Parameter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Parameter(nil), f.params[endpointID]...), nil
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []models.HistoryEntry
	err     error
}

func (f *fakeHistory) Insert(_ context.Context, entry *models.HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	entry.ID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeHistory) all() []models.HistoryEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.HistoryEntry(nil), f.entries...)
}

type fakeProps map[string]string

func (p fakeProps) GetRequiredProperty(key string) (string, error) {
	v, ok := p[key]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", brokererr.ErrConfiguration, key)
	}
	return v, nil
}

func defaultProps() fakeProps {
	return fakeProps{
		config.PropertyProxyHostname: "proxy.local",
		config.PropertyProxyPort:     "4822",
	}
}

type fakeConn struct {
	id       string
	closeErr error

	mu     sync.Mutex
	closed int
}

func (c *fakeConn) ID() string                   { return c.id }
func (c *fakeConn) ReadMessage() ([]byte, error) { return nil, errors.New("not implemented") }
func (c *fakeConn) WriteMessage([]byte) error    { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
	return c.closeErr
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeConnector struct {
	mu       sync.Mutex
	openErr  error
	closeErr error
	opened   int
	lastHost string
	lastPort int
	lastCfg  *transport.Configuration
	conns    []*fakeConn
}

func (f *fakeConnector) Open(_ context.Context, host string, port int, cfg *transport.Configuration, _ models.ClientInfo) (transport.Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	f.lastHost, f.lastPort, f.lastCfg = host, port, cfg
	if f.openErr != nil {
		return nil, f.openErr
	}
	conn := &fakeConn{id: fmt.Sprintf("tunnel-%d", f.opened), closeErr: f.closeErr}
	f.conns = append(f.conns, conn)
	return conn, nil
}

func (f *fakeConnector) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

// countingPolicy wraps a policy and counts grants and releases. onRelease,
// when set, runs before the wrapped release.
type countingPolicy struct {
	inner     policy.Policy
	mu        sync.Mutex
	acquired  int
	released  int
	onRelease func()
}

func (p *countingPolicy) Acquire(ctx context.Context, user models.AuthenticatedUser, endpoint models.Endpoint) error {
	if err := p.inner.Acquire(ctx, user, endpoint); err != nil {
		return err
	}
	p.mu.Lock()
	p.acquired++
	p.mu.Unlock()
	return nil
}

func (p *countingPolicy) Release(user models.AuthenticatedUser, endpoint models.Endpoint) {
	if p.onRelease != nil {
		p.onRelease()
	}
	p.mu.Lock()
	p.released++
	p.mu.Unlock()
	p.inner.Release(user, endpoint)
}

func (p *countingPolicy) holds() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired - p.released
}

// fakeClock advances by step on every call.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

type fixture struct {
	broker    *Broker
	registry  *registry.Registry
	params    *fakeParams
	history   *fakeHistory
	connector *fakeConnector
	policy    *countingPolicy
	props     fakeProps
}

func newFixture(p policy.Policy) *fixture {
	f := &fixture{
		registry:  registry.New(),
		params:    &fakeParams{params: map[string][]models.Parameter{}},
		history:   &fakeHistory{},
		connector: &fakeConnector{},
		policy:    &countingPolicy{inner: p},
		props:     defaultProps(),
	}
	f.broker = NewBroker(Deps{
		Parameters: f.params,
		History:    f.history,
		Properties: f.props,
		Connector:  f.connector,
		Policy:     f.policy,
		Registry:   f.registry,
	})
	return f
}

func userNamed(id int64, name string) models.AuthenticatedUser {
	return models.AuthenticatedUser{
		User:        models.User{ID: id, Username: name},
		Credentials: models.Credentials{Username: name, Password: name + "-pw", RemoteAddress: "192.0.2.10"},
	}
}
