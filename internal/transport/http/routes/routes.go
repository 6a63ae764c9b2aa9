package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pulsesparkai/my-old-space/internal/core/domain"
	"github.com/pulsesparkai/my-old-space/internal/infra/config"
	"github.com/pulsesparkai/my-old-space/internal/transport/http/handlers"
	"github.com/pulsesparkai/my-old-space/internal/transport/http/middleware"
	"github.com/pulsesparkai/my-old-space/internal/usecase"
)

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Verifier    middleware.TokenVerifier
	RateLimiter *usecase.RateLimiter
	Usernames   *usecase.UsernameService
	HTTPMetrics *middleware.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if err := r.SetTrustedProxies(deps.Config.App.TrustedProxies); err != nil {
		deps.Logger.Warn("invalid trusted proxies, forwarding headers ignored", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	if len(deps.Config.App.TrustedProxies) == 0 {
		r.ForwardedByClientIP = false
	}
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(deps.Config.App.CORSOrigins))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.HTTPMetrics.Handler())

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if deps.Usernames == nil || deps.RateLimiter == nil || deps.Verifier == nil {
		return r
	}

	authMiddleware := middleware.RequireAuth(deps.Verifier)
	limits := middleware.NewRateLimiter(deps.RateLimiter, deps.Logger)

	api := r.Group("/api/v1")
	{
		usernameHandler := handlers.NewUsernameHandler(deps.Usernames)
		api.GET("/usernames/:username/availability", limits.RateLimit(domain.ActionGeneral), usernameHandler.Availability)
		api.POST("/usernames", authMiddleware, limits.RateLimit(domain.ActionClaimUsername), usernameHandler.Claim)
		api.PUT("/profile/username", authMiddleware, limits.RateLimit(domain.ActionUpdateUsername), usernameHandler.Rename)

		profileHandler := handlers.NewProfileHandler(deps.Usernames)
		api.GET("/profiles/:username", profileHandler.Resolve)

		rateLimitHandler := handlers.NewRateLimitHandler(deps.RateLimiter)
		api.POST("/rate-limits/:action", authMiddleware, rateLimitHandler.Consume)
	}

	return r
}
