package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/shop-catalog-backend/internal/adapter/postgres"
	"github.com/heartmarshall/shop-catalog-backend/internal/adapter/postgres/snapshot"
	"github.com/heartmarshall/shop-catalog-backend/internal/adapter/postgres/unit"
	"github.com/heartmarshall/shop-catalog-backend/internal/adapter/redis/treecache"
	"github.com/heartmarshall/shop-catalog-backend/internal/config"
	"github.com/heartmarshall/shop-catalog-backend/internal/metrics"
	"github.com/heartmarshall/shop-catalog-backend/internal/service/shop"
	"github.com/heartmarshall/shop-catalog-backend/internal/transport/middleware"
	"github.com/heartmarshall/shop-catalog-backend/internal/transport/rest"
)

// Run is the application entry point. It loads configuration, connects to
// PostgreSQL (and Redis when the cache is enabled), wires the catalog service
// and serves HTTP until ctx is cancelled.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, logCloser := NewLogger(cfg.Log)
	defer logCloser.Close()

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
		slog.String("addr", cfg.Server.Addr()),
	)

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		results, err := postgres.Migrate(ctx, pool)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied", slog.Int("count", len(results)))
	}

	var rdb redis.UniversalClient
	if cfg.Cache.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		defer client.Close()
		rdb = client
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := build(cfg, logger, pool, rdb, reg)
	defer a.close()

	ln, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr(), err)
	}

	srv := &http.Server{
		Handler:      a.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	return serve(ctx, srv, ln, cfg.Server.ShutdownTimeout, logger)
}

// application is the wired object graph behind the HTTP handler.
type application struct {
	handler http.Handler
	service *shop.Service
	limiter *middleware.RateLimiter
}

func (a *application) close() {
	if a.limiter != nil {
		a.limiter.Stop()
	}
}

// build wires repositories, the service and the transport layer. rdb and reg
// may be nil, disabling the tree cache and metrics respectively.
func build(
	cfg *config.Config,
	logger *slog.Logger,
	pool *pgxpool.Pool,
	rdb redis.UniversalClient,
	reg *prometheus.Registry,
) *application {
	txm := postgres.NewTxManager(pool,
		postgres.WithSerializationRetries(cfg.Import.SerializationRetries, cfg.Import.RetryBaseDelay),
	)

	svc := shop.NewService(logger, unit.New(pool), snapshot.New(pool), txm, cfg.Import)
	health := rest.NewHealthHandler(pool, BuildVersion())

	var m *metrics.Metrics
	if cfg.Metrics.Enabled && reg != nil {
		m = metrics.New(reg)
		svc.SetMetrics(m)
	}

	if rdb != nil {
		cache := treecache.New(rdb, cfg.Cache.KeyPrefix, cfg.Cache.TTL, logger)
		svc.SetCache(cache)
		health.WithCache(cache)
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter = middleware.NewRateLimiter(
			cfg.RateLimit.RequestsPerSecond,
			cfg.RateLimit.Burst,
			cfg.RateLimit.CleanupInterval,
		)
	}

	deps := routerDeps{
		cfg:     cfg,
		log:     logger,
		catalog: rest.NewCatalogHandler(svc, logger),
		health:  health,
		limiter: limiter,
	}
	if m != nil {
		deps.metrics = m
		deps.gatherer = reg
	}

	return &application{
		handler: newRouter(deps),
		service: svc,
		limiter: limiter,
	}
}

// serve runs srv on ln until ctx is done, then shuts it down gracefully
// within shutdownTimeout.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, shutdownTimeout time.Duration, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("http server stopped")
	return nil
}
