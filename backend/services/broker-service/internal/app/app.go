package app

import (
	"context"
	"database/sql"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gatebroker/backend/libs/db"
	libredis "gatebroker/backend/libs/redis"
	"gatebroker/backend/services/broker-service/internal/auth"
	appconfig "gatebroker/backend/services/broker-service/internal/config"
	"gatebroker/backend/services/broker-service/internal/http"
	"gatebroker/backend/services/broker-service/internal/http/handlers"
	"gatebroker/backend/services/broker-service/internal/http/middleware"
	"gatebroker/backend/services/broker-service/internal/policy"
	redisstore "gatebroker/backend/services/broker-service/internal/redis"
	"gatebroker/backend/services/broker-service/internal/registry"
	"gatebroker/backend/services/broker-service/internal/relay"
	"gatebroker/backend/services/broker-service/internal/repository"
	"gatebroker/backend/services/broker-service/internal/service"
	"gatebroker/backend/services/broker-service/internal/transport"
)

const drainTimeout = 15 * time.Second

// App wires dependencies for the broker service.
type App struct {
	server  *httpserver.Server
	handles *service.HandleTable
	db      *sql.DB
	redis   *goredis.Client
	logger  *zap.Logger
}

// New builds the application graph. Redis is optional: without an address
// the redis policy kind is rejected and no session mirror is kept.
func New(ctx context.Context, cfg *appconfig.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := db.Open(ctx, cfg.Database.DSN, db.PoolOptions{})
	if err != nil {
		return nil, err
	}
	a := &App{db: sqlDB, logger: logger}

	var (
		scripter goredis.Scripter
		mirror   service.ActiveMirror
		lister   handlers.MirrorLister
	)
	if cfg.Redis.Addr != "" {
		client, err := libredis.NewClient(ctx, libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		scripter = client
		store := redisstore.NewStore(client, cfg.Redis.MirrorTTL)
		mirror = store
		lister = store
	}

	admission, err := policy.FromConfig(cfg.Policy, scripter,
		policy.WithReleaseErrorHandler(func(endpointID string, err error) {
			logger.Error("failed to release endpoint hold", zap.String("endpoint_id", endpointID), zap.Error(err))
		}),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	endpointRepo := repository.NewEndpointRepository(sqlDB)
	historyRepo := repository.NewHistoryRepository(sqlDB)
	var params service.ParameterStore = repository.NewParameterRepository(sqlDB)
	if cfg.Cache.ParameterTTL > 0 {
		params = repository.NewCachedParameterStore(params, cfg.Cache.ParameterTTL)
	}

	broker := service.NewBroker(service.Deps{
		Parameters: params,
		History:    historyRepo,
		Properties: appconfig.NewProperties(cfg),
		Connector:  transport.NewWebSocketConnector(),
		Policy:     admission,
		Registry:   registry.New(),
	})
	a.handles = service.NewHandleTable(broker, mirror, logger)

	tokenSvc := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	loginSvc := auth.NewLoginService(repository.NewUserRepository(sqlDB), auth.NewBcryptHasher(0), tokenSvc)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Login:    handlers.NewLoginHandler(loginSvc, logger),
		Sessions: handlers.NewSessionsHandlers(endpointRepo, broker, a.handles, historyRepo, lister, logger),
		Tunnel:   handlers.NewTunnelHandler(a.handles, relay.New(a.handles, logger), logger),
		Health:   handlers.NewHealthHandler(),
	}, middleware.Authenticate(tokenSvc))
	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	logger.Info("broker configured",
		zap.String("policy", cfg.Policy.Kind),
		zap.Int("policy_overrides", len(cfg.Policy.Overrides)),
		zap.Bool("redis", a.redis != nil),
		zap.Duration("parameter_cache_ttl", cfg.Cache.ParameterTTL),
	)
	return a, nil
}

// Run serves HTTP traffic until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Close ends every open session, then releases acquired resources.
func (a *App) Close() {
	if a.handles != nil {
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		a.handles.CloseAll(ctx)
		cancel()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}
