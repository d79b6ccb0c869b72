package config

import (
	"fmt"
	"strings"

	"gatebroker/backend/services/broker-service/internal/brokererr"
)

// Property keys understood by Properties.
const (
	PropertyProxyHostname = "proxy-hostname"
	PropertyProxyPort     = "proxy-port"
)

// Properties exposes selected settings by key.
type Properties struct {
	values map[string]string
}

// NewProperties snapshots the keyed settings from cfg.
func NewProperties(cfg *Config) *Properties {
	return &Properties{values: map[string]string{
		PropertyProxyHostname: cfg.Proxy.Hostname,
		PropertyProxyPort:     cfg.Proxy.Port,
	}}
}

// GetRequiredProperty returns the value for key. A missing or blank value is
// a configuration error.
func (p *Properties) GetRequiredProperty(key string) (string, error) {
	value := strings.TrimSpace(p.values[key])
	if value == "" {
		return "", fmt.Errorf("%w: property %q is required", brokererr.ErrConfiguration, key)
	}
	return value, nil
}
