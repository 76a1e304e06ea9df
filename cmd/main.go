package main

import (
	"context"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"saasresto/internal/auth"
	"saasresto/internal/handler"
	"saasresto/internal/middleware"
	"saasresto/internal/ratelimit"
	"saasresto/internal/session"
	"saasresto/internal/store"
	"saasresto/pkg/config"
	"saasresto/pkg/database"
	"saasresto/pkg/logger"
	"saasresto/prometheus"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting saasresto...", cfg.LogConfig()...)

	// Initialize database
	if err := database.Initialize(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Wire the auth core: store, sessions, rate limiter, auth service
	st := store.New(database.GetDB())
	sessions := session.NewManager(st, cfg.Session.TTLDays, cfg.Session.CookieDomain, cfg.Session.CookieSecure)
	loginLimiter, resetLimiter := newLimiters(cfg, log)
	authService := auth.NewService(st, sessions, loginLimiter)
	authProvider := auth.NewProvider(sessions)

	authHandler := handler.NewAuthHandler(authService, sessions, authProvider, resetLimiter, cfg)
	tenantHandler := handler.NewTenantHandler(st)
	teamHandler := handler.NewTeamHandler(st)

	// Initialize Echo framework
	e := echo.New()

	// The edge router must run before route matching so tenant-facing
	// requests land on the /t/:slug routes
	e.Pre(middleware.EdgeRouter(cfg.App.BaseDomain))

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)
	e.GET("/", tenantHandler.Landing)
	e.GET("/t/:slug", tenantHandler.PublicSite)

	// Authentication routes
	authRoutes := e.Group("/api/auth")
	authRoutes.POST("/login", authHandler.Login)
	authRoutes.POST("/logout", authHandler.Logout)
	authRoutes.POST("/register", authHandler.Register)
	authRoutes.GET("/slug-availability", authHandler.SlugAvailability)
	authRoutes.POST("/forgot-password", authHandler.ForgotPassword)
	authRoutes.POST("/reset-password", authHandler.ResetPassword)
	authRoutes.GET("/me", authHandler.Me, authProvider.RequireAuth)
	authRoutes.POST("/change-password", authHandler.ChangePassword, authProvider.RequireAuth)

	// Protected application routes - any authenticated staff
	app := e.Group("/api/app")
	app.Use(authProvider.RequireAuth)

	// Team management - owner only
	team := app.Group("/team")
	team.Use(authProvider.RequireOwner())
	team.POST("", teamHandler.AddMember)
	team.DELETE("/:id", teamHandler.RemoveMember)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}

// newLimiters selects the rate-limit backing store and builds the two
// windows: per-account login attempts and per-IP recovery endpoints, each
// on its own max/window. Memory is correct for a single instance;
// horizontally scaled deployments share the windows through Redis (one
// client, keys already disambiguated by action prefix).
func newLimiters(cfg *config.Config, log *zap.Logger) (login, reset ratelimit.Limiter) {
	if cfg.RateLimit.Backend == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		log.Info("Using redis rate limiter", zap.String("addr", cfg.Redis.Addr))
		return ratelimit.NewRedis(rdb, cfg.RateLimit.LoginMax, cfg.RateLimit.LoginWindow, log),
			ratelimit.NewRedis(rdb, cfg.RateLimit.ResetMax, cfg.RateLimit.ResetWindow, log)
	}
	log.Info("Using in-memory rate limiter")
	return ratelimit.NewMemory(cfg.RateLimit.LoginMax, cfg.RateLimit.LoginWindow),
		ratelimit.NewMemory(cfg.RateLimit.ResetMax, cfg.RateLimit.ResetWindow)
}
