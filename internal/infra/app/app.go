package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
	"github.com/pulsesparkai/my-old-space/internal/core/port"
	"github.com/pulsesparkai/my-old-space/internal/infra/config"
	"github.com/pulsesparkai/my-old-space/internal/infra/database"
	kafkainfra "github.com/pulsesparkai/my-old-space/internal/infra/kafka"
	"github.com/pulsesparkai/my-old-space/internal/infra/logger"
	redisinfra "github.com/pulsesparkai/my-old-space/internal/infra/redis"
	"github.com/pulsesparkai/my-old-space/internal/infra/security"
	"github.com/pulsesparkai/my-old-space/internal/infra/telemetry"
	"github.com/pulsesparkai/my-old-space/internal/repository/memory"
	postgresrepo "github.com/pulsesparkai/my-old-space/internal/repository/postgres"
	redisrepo "github.com/pulsesparkai/my-old-space/internal/repository/redis"
	transportgrpc "github.com/pulsesparkai/my-old-space/internal/transport/grpc"
	grpcinterceptors "github.com/pulsesparkai/my-old-space/internal/transport/grpc/interceptors"
	"github.com/pulsesparkai/my-old-space/internal/transport/http/middleware"
	"github.com/pulsesparkai/my-old-space/internal/transport/http/routes"
	"github.com/pulsesparkai/my-old-space/internal/usecase"
)

type Application struct {
	cfg        *config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	pool       *pgxpool.Pool
	redis      *redisinfra.Client
	producer   *kafkainfra.Producer
	tracer     *telemetry.TracerProvider
	grpcServer *transportgrpc.Server
	grpcAddr   string
	usernames  *usecase.UsernameService
	janitor    *Janitor
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	ok := false
	defer func() {
		if !ok {
			a.closeResources(context.Background())
		}
	}()

	if cfg.Telemetry.TracingEnabled {
		if a.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log); err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
	}

	domainMetrics, err := telemetry.NewDomainMetrics(prometheus.DefaultRegisterer, "profiles")
	if err != nil {
		return nil, fmt.Errorf("init domain metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}
	grpcMetrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init grpc metrics: %w", err)
	}

	var (
		profiles  port.ProfileRepository
		redirects port.RedirectRepository
	)
	switch cfg.Store.Driver {
	case "postgres":
		if a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log); err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		if cfg.Store.AutoMigrate {
			if err := database.Migrate(ctx, a.pool, log); err != nil {
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		repos := postgresrepo.NewRepositories(a.pool)
		profiles, redirects = repos.Profiles, repos.Redirects
	default:
		log.Warn("using in-memory profile store, data is lost on restart")
		profiles, redirects = memory.NewProfileStore(), memory.NewRedirectStore()
	}

	var counters port.RateLimitStore
	switch cfg.RateLimit.Backend {
	case "redis":
		if a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log); err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		counters = redisrepo.NewRateLimitRepository(a.redis.Client(), redisrepo.FixedWindowConfig{
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	default:
		counters = memory.NewRateLimitStore()
	}

	var events port.EventPublisher
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			events = kafkainfra.NewStubPublisher(log)
		} else {
			a.producer = producer
			events = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka disabled, using stub publisher")
		events = kafkainfra.NewStubPublisher(log)
	}

	limiter := usecase.NewRateLimiter(counters, actionLimits(cfg.RateLimit)).
		WithLogger(log).
		WithMetrics(domainMetrics)

	a.usernames = usecase.NewUsernameService(profiles, redirects, events, usecase.UsernameOptions{
		RedirectTTL:          cfg.Username.RedirectTTL,
		RedirectWriteTimeout: cfg.Username.RedirectWriteTimeout,
	}).WithLogger(log).WithMetrics(domainMetrics)

	a.janitor = NewJanitor(limiter, cfg.RateLimit.SweepInterval, a.usernames, cfg.Username.PurgeInterval, log)

	verifier := security.NewTokenVerifier(cfg.Auth)

	if cfg.GRPC.Enabled {
		a.grpcServer = transportgrpc.NewServer(transportgrpc.ServerDependencies{
			Verifier: verifier,
			Metrics:  grpcMetrics,
			Logger:   log,
		})
		a.grpcAddr = fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
	}

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Verifier:    verifier,
		RateLimiter: limiter,
		Usernames:   a.usernames,
		HTTPMetrics: httpMetrics,
	}
	if a.pool != nil {
		deps.Database = a.pool
	}
	if a.redis != nil {
		deps.Cache = a.redis
	}
	a.engine = routes.Register(deps)

	ok = true
	return a, nil
}

// actionLimits converts configured per-action limits into limiter configuration.
func actionLimits(cfg config.RateLimitSettings) map[domain.Action]domain.RateLimitConfig {
	limits := make(map[domain.Action]domain.RateLimitConfig)
	for name, limit := range cfg.Actions() {
		if limit.Max <= 0 || limit.Window <= 0 {
			continue
		}
		limits[domain.Action(name)] = domain.RateLimitConfig{Max: limit.Max, Window: limit.Window}
	}
	return limits
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go a.janitor.Run(janitorCtx)

	grpcErrCh := make(chan error, 1)
	if a.grpcServer != nil {
		lis, err := net.Listen("tcp", a.grpcAddr)
		if err != nil {
			a.closeResources(context.Background())
			return fmt.Errorf("listen grpc: %w", err)
		}
		go func() {
			if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				grpcErrCh <- fmt.Errorf("run grpc server: %w", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting profile API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("store", a.cfg.Store.Driver),
		zap.String("rate_limit_backend", a.cfg.RateLimit.Backend),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErrCh:
	case runErr = <-grpcErrCh:
	}

	timeout := a.cfg.App.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a.logger.Info("shutting down profile API")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("shutdown server: %w", err))
	}
	if a.grpcServer != nil {
		a.grpcServer.Shutdown(shutdownCtx)
	}
	stopJanitor()
	a.closeResources(shutdownCtx)

	return runErr
}

// closeResources flushes pending redirect writes before closing the stores they target.
func (a *Application) closeResources(ctx context.Context) {
	if a.usernames != nil {
		if err := a.usernames.Drain(ctx); err != nil {
			a.logger.Warn("pending redirect writes not flushed", zap.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer", zap.Error(err))
		}
	}
}
