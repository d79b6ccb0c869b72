package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "gatebroker/backend/libs/config"
)

// HTTPConfig controls the API listener.
type HTTPConfig struct {
	Port string `yaml:"port" env:"BROKER_HTTP_PORT"`
}

// DatabaseConfig points at the endpoint/history store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"BROKER_POSTGRES_DSN"`
}

// RedisConfig points at the shared Redis used for cluster-wide holds and the
// active session mirror. An empty Addr disables both.
type RedisConfig struct {
	Addr      string        `yaml:"addr" env:"BROKER_REDIS_ADDR"`
	Password  string        `yaml:"password" env:"BROKER_REDIS_PASSWORD"`
	DB        int           `yaml:"db" env:"BROKER_REDIS_DB"`
	MirrorTTL time.Duration `yaml:"mirrorTTL" env:"BROKER_REDIS_MIRROR_TTL"`
}

// ProxyConfig is where tunnels are opened.
type ProxyConfig struct {
	Hostname string `yaml:"hostname" env:"BROKER_PROXY_HOSTNAME"`
	Port     string `yaml:"port" env:"BROKER_PROXY_PORT"`
}

// PolicyRule selects one admission policy variant.
//
// Kind is one of unrestricted, exclusive, bounded, per-user or redis.
type PolicyRule struct {
	Kind     string `yaml:"kind" env:"BROKER_POLICY_KIND"`
	Limit    int    `yaml:"limit" env:"BROKER_POLICY_LIMIT"`
	Blocking bool   `yaml:"blocking" env:"BROKER_POLICY_BLOCKING"`
}

// PolicyConfig is the default rule plus per-endpoint overrides.
type PolicyConfig struct {
	PolicyRule `yaml:",inline"`
	Overrides  map[string]PolicyRule `yaml:"overrides"`
}

// AuthConfig controls token issuing for the HTTP API.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwtSecret" env:"BROKER_JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"tokenTTL" env:"BROKER_TOKEN_TTL"`
}

// CacheConfig controls the parameter cache.
type CacheConfig struct {
	ParameterTTL time.Duration `yaml:"parameterTTL" env:"BROKER_PARAMETER_CACHE_TTL"`
}

// Config defines broker service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Proxy    ProxyConfig    `yaml:"proxy"`
	Policy   PolicyConfig   `yaml:"policy"`
	Auth     AuthConfig     `yaml:"auth"`
	Cache    CacheConfig    `yaml:"cache"`
}

// Default returns the configuration used before file and env overrides.
func Default() *Config {
	return &Config{
		HTTP:  HTTPConfig{Port: "8090"},
		Redis: RedisConfig{MirrorTTL: 24 * time.Hour},
		Proxy: ProxyConfig{Hostname: "localhost", Port: "4822"},
		Policy: PolicyConfig{
			PolicyRule: PolicyRule{Kind: "exclusive"},
		},
		Auth:  AuthConfig{TokenTTL: time.Hour},
		Cache: CacheConfig{ParameterTTL: 30 * time.Second},
	}
}

// Load reads configuration via the shared loader and validates it.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.Load(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings the process cannot start without. Proxy settings
// are not checked here; they are read when a session is opened.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database dsn required")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("config: jwt secret required")
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8090"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
