package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/authhub/internal/auth"
	"github.com/geocoder89/authhub/internal/cache"
	"github.com/geocoder89/authhub/internal/config"
	"github.com/geocoder89/authhub/internal/http/handlers"
	"github.com/geocoder89/authhub/internal/http/middlewares"
	"github.com/geocoder89/authhub/internal/observability"
	"github.com/geocoder89/authhub/internal/redisclient"
	"github.com/geocoder89/authhub/internal/repo/postgres"
	"github.com/geocoder89/authhub/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func NewRouter(log *slog.Logger, pool *pgxpool.Pool, redisClient *redisclient.Client, cfg config.Config) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("authhub"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(1 << 20))
	r.Use(middlewares.RequireJSON())

	registry := prometheus.NewRegistry()
	prom := observability.NewProm(registry)
	r.Use(prom.GinHandleMiddleware())

	// wire up the service

	codec := auth.NewCodec(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second

	var userCache cache.Cache

	if redisClient != nil {
		userCache = cache.NewRedis(redisClient, cacheTTL)
	} else {
		userCache = cache.NewMemory(cacheTTL)
	}

	usersRepo := postgres.NewUsersRepo(pool, prom)
	sessionsRepo := postgres.NewSessionsRepo(pool, prom)

	svc := service.NewAuth(usersRepo, sessionsRepo, codec, userCache, log, prom, cfg.AccessTTL())

	// single auth gate: public paths pass, everything else needs a bearer token
	authMW := middlewares.NewAuthMiddleware(svc)
	r.Use(authMW.Gate())

	// health + metrics

	pingDB := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	var pingRedis func() error

	if redisClient != nil {
		pingRedis = func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cancel()

			return redisClient.Ping(ctx)
		}
	}

	h := handlers.NewHealthHandler(pingDB, pingRedis)
	r.GET("/health", h.Healthz)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	r.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"service": "authhub", "status": "ok"})
	})

	// auth routes

	ah := handlers.NewAuthHandler(svc)

	// brute-force guard on the credential endpoints
	limiter := middlewares.NewRateLimiter(20, time.Minute)
	byIP := limiter.RateLimiterMiddleware(middlewares.KeyByIP)

	authGroup := r.Group("/auth")
	authGroup.POST("/register", byIP, ah.Register)
	authGroup.POST("/login", byIP, ah.Login)
	authGroup.POST("/refresh", byIP, ah.Refresh)
	authGroup.POST("/logout", ah.Logout)
	authGroup.GET("/me", ah.Me)
	authGroup.PUT("/profile", ah.UpdateProfile)
	authGroup.POST("/change-password", ah.ChangePassword)

	r.NoRoute(func(ctx *gin.Context) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return r
}
