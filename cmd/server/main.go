package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openblog/backend/internal/api"
	"github.com/openblog/backend/internal/auth"
	"github.com/openblog/backend/internal/blog"
	"github.com/openblog/backend/internal/cache"
	"github.com/openblog/backend/internal/comment"
	"github.com/openblog/backend/internal/config"
	"github.com/openblog/backend/internal/db"
	"github.com/openblog/backend/internal/events"
	"github.com/openblog/backend/internal/health"
	"github.com/openblog/backend/internal/logger"
	"github.com/openblog/backend/internal/metrics"
	"github.com/openblog/backend/internal/middleware"
	"github.com/openblog/backend/internal/storage"
)

const version = "0.3.0"

func main() {
	cfg := config.Load()
	log := logger.New(os.Stdout, logger.ParseLevel(cfg.LogLevel), "server")
	ctx := context.Background()

	database, err := db.New(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	if err != nil {
		log.Error(ctx, "database connection failed", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Error(ctx, "migrations failed", err)
		os.Exit(1)
	}

	// Redis is optional; without it the service runs uncached and
	// unthrottled.
	var redisCache *cache.Cache
	if cfg.RedisAddr != "" {
		redisCache, err = cache.New(cfg.RedisAddr, log.WithComponent("cache"))
		if err != nil {
			log.Warn(ctx, "redis unavailable, continuing without cache", map[string]any{"error": err.Error()})
		} else {
			defer redisCache.Close()
		}
	}

	// Object storage is optional too; cover image endpoints report an
	// error when it is absent.
	var store *storage.Client
	if cfg.MinioEndpoint != "" {
		store, err = storage.New(storage.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Warn(ctx, "object storage unavailable, continuing without covers", map[string]any{"error": err.Error()})
			store = nil
		} else if err := store.EnsureBucket(ctx); err != nil {
			log.Warn(ctx, "bucket setup failed, continuing without covers", map[string]any{"error": err.Error()})
			store = nil
		}
	}

	userRepo := db.NewUserRepository(database)
	blogRepo := db.NewBlogRepository(database)
	commentRepo := db.NewCommentRepository(database)

	issuer := auth.NewTokenIssuer(
		cfg.AccessTokenSecret, cfg.RefreshTokenSecret,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL,
	)
	authService := auth.NewService(userRepo, issuer)
	authHandlers := auth.NewHandlers(authService, cfg.CookieSecure)

	appMetrics := metrics.Default()

	hub := events.NewHub()
	hub.SetConnectionCounter(appMetrics)
	go hub.Run()

	blogService := blog.NewService(blogRepo, redisCache, hub, log.WithComponent("blog"))
	blogHandlers := blog.NewHandlers(blogService, store)

	commentService := comment.NewService(commentRepo, blogService, hub)
	commentHandlers := comment.NewHandlers(commentService)

	adminHandlers := api.NewAdminHandlers(userRepo)
	eventsHandler := events.NewHandler(hub, authService, log.WithComponent("events"), cfg.AllowedOrigins)

	limiter := middleware.NewRedisLimiter(redisCache.Client())

	healthCfg := health.CheckerConfig{DB: database.DB, Version: version}
	if redisCache != nil {
		healthCfg.Cache = redisCache.Ping
	}
	if store != nil {
		healthCfg.Storage = store.Ping
	}
	healthHandler := health.NewHandler(health.NewChecker(healthCfg))

	router := api.NewRouter(api.RouterConfig{
		AuthService:     authService,
		AuthHandlers:    authHandlers,
		BlogHandlers:    blogHandlers,
		CommentHandlers: commentHandlers,
		AdminHandlers:   adminHandlers,
		EventsHandler:   eventsHandler,
		HealthHandler:   healthHandler,
		Metrics:         appMetrics,
		Limiter:         limiter,
		AllowedOrigins:  cfg.AllowedOrigins,
		Log:             log,
	})

	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info(ctx, "server listening", map[string]any{"addr": cfg.ServerAddr, "version": version})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "server failed", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "shutdown failed", err)
	}
}
