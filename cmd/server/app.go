package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"weatherfav/internal/config"
	"weatherfav/internal/events"
	"weatherfav/internal/favorites"
	"weatherfav/internal/fetcher"
	"weatherfav/internal/logger"
	"weatherfav/internal/owm"
	"weatherfav/internal/store"
	"weatherfav/internal/weather"
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg      config.Config
	log      *zap.SugaredLogger
	registry *prometheus.Registry

	gateway   *owm.Client
	forecast  *weather.ForecastService
	favorites *favorites.Store
	refresher *favorites.Refresher
	fetcher   *fetcher.Fetcher
	events    *events.RedisPublisher

	closers []func()
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newGateway(cfg config.Config, reg prometheus.Registerer) *owm.Client {
	var doer owm.Doer
	if cfg.OWMBreaker {
		doer = owm.NewBreakerDoer(&http.Client{}, owm.BreakerSettings{})
	}
	return owm.NewClient(owm.Config{
		BaseURL: cfg.OWMBaseURL,
		APIKey:  cfg.OWMAPIKey,
		Lang:    cfg.OWMLang,
		Timeout: cfg.OWMTimeout,
		Retry: owm.RetryPolicy{
			Attempts: cfg.OWMRetryAttempts,
			Delay:    cfg.OWMRetryDelay,
		},
	}, doer, owm.NewMetrics(reg))
}

// newForecastService needs only the gateway, so the forecast command skips storage.
func newForecastService(cfg config.Config, reg prometheus.Registerer) *weather.ForecastService {
	return weather.NewForecastService(newGateway(cfg, reg), cfg.ForecastDays, time.UTC)
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	log := logger.GetLogger().Named("app")
	a := &app{cfg: cfg, log: log, registry: newRegistry()}

	log.Infow("starting",
		"environment", cfg.Environment,
		"store", cfg.StoreDriver,
		"owm_base_url", cfg.OWMBaseURL,
		"owm_api_key", logger.MaskSecret(cfg.OWMAPIKey),
		"breaker", cfg.OWMBreaker,
		"retry_attempts", cfg.OWMRetryAttempts,
	)

	repo, err := a.openRepository(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []favorites.Option{favorites.WithChangeBuffer(cfg.ChangeBuffer)}
	if cfg.RedisURL != "" {
		pub, err := a.openPublisher(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.events = pub
		opts = append(opts, favorites.WithPublisher(pub))
	}

	a.gateway = newGateway(cfg, a.registry)
	a.forecast = weather.NewForecastService(a.gateway, cfg.ForecastDays, time.UTC)
	a.favorites = favorites.NewStore(repo, a.gateway, opts...)
	a.closers = append(a.closers, a.favorites.Close)
	a.refresher = favorites.NewRefresher(a.favorites, cfg.RefreshConcurrency, favorites.NewMetrics(a.registry))
	a.fetcher = fetcher.New(a.favorites, a.refresher)
	return a, nil
}

func (a *app) openRepository(ctx context.Context) (favorites.Repository, error) {
	if a.cfg.StoreDriver == "memory" {
		a.log.Warn("using in-memory store; favorites are lost on exit")
		return store.NewMemory(), nil
	}

	a.log.Infow("connecting to database", "dsn", logger.MaskConnectionString(a.cfg.DatabaseURL))
	db, err := store.New(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.closers = append(a.closers, db.Close)

	if err := db.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

func (a *app) openPublisher(ctx context.Context) (*events.RedisPublisher, error) {
	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	a.closers = append(a.closers, func() { rdb.Close() })

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return events.NewRedisPublisher(rdb, events.DefaultConfig(), a.registry), nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
