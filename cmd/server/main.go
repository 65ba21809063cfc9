package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/cineflix/cineflix/internal/auth"
	"github.com/cineflix/cineflix/internal/catalog"
	"github.com/cineflix/cineflix/internal/config"
	"github.com/cineflix/cineflix/internal/download"
	"github.com/cineflix/cineflix/internal/health"
	"github.com/cineflix/cineflix/internal/logger"
	"github.com/cineflix/cineflix/internal/metrics"
	appmw "github.com/cineflix/cineflix/internal/middleware"
	"github.com/cineflix/cineflix/internal/mylist"
	"github.com/cineflix/cineflix/internal/remember"
	"github.com/cineflix/cineflix/internal/repository"
	"github.com/cineflix/cineflix/internal/session"
	"github.com/cineflix/cineflix/internal/storage"
	"github.com/cineflix/cineflix/internal/ui"
)

// Version is set at build time
var Version = "dev"

func main() {
	log := logger.New(logger.DefaultConfig())
	slog.SetDefault(log)

	cfg := config.Load()

	// Setup database connection
	dbPool, err := setupDatabase(cfg, log)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// Login history queries go through sqlx on the same pool
	sqlxDB := sqlx.NewDb(stdlib.OpenDBFromPool(dbPool), "pgx")
	defer sqlxDB.Close()

	dbCollector := metrics.NewDBStatsCollector(dbPool, sqlxDB, log)
	dbCollector.Start(15 * time.Second)
	defer dbCollector.Stop()

	// Session store: Redis when configured, in-memory otherwise
	var (
		sessionStore session.Store
		redisClient  *redis.Client
	)
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		sessionStore = session.NewRedisStore(redisClient, cfg.Redis.KeyPrefix)
		log.Info("Using Redis session store", "addr", cfg.Redis.Addr)
	} else {
		memStore := session.NewMemoryStore()
		memStore.StartSweeper(time.Minute)
		defer memStore.Stop()
		sessionStore = memStore
		log.Info("Using in-memory session store")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(dbPool)
	loginEventRepo := repository.NewLoginEventRepo(sqlxDB)
	savedMovieRepo := repository.NewSavedMovieRepository(dbPool)

	// Initialize services
	sessions := session.NewManager(sessionStore, session.Config{
		CookieName:       cfg.Session.CookieName,
		IdleTimeout:      cfg.Session.IdleTimeout,
		RotationInterval: cfg.Session.RotationInterval,
		Secure:           cfg.Session.SecureCookies,
	}, log)

	rememberIssuer := remember.NewIssuer(remember.Config{
		Expiry:     cfg.Remember.Expiry,
		Secure:     cfg.Session.SecureCookies,
		SigningKey: cfg.Remember.SigningKey,
	}, log)

	gateway := auth.NewGateway(auth.GatewayConfig{
		Users:         userRepo,
		LoginEvents:   loginEventRepo,
		Sessions:      sessions,
		Remember:      rememberIssuer,
		Hasher:        auth.NewPasswordHasher(cfg.Server.BcryptCost),
		SecureCookies: cfg.Session.SecureCookies,
		Logger:        log,
	})

	catalogClient := catalog.NewClient(catalog.Config{
		APIKey:  cfg.TMDB.APIKey,
		BaseURL: cfg.TMDB.BaseURL,
		Timeout: cfg.TMDB.Timeout,
	}, log)
	if !catalogClient.Configured() {
		log.Warn(catalog.MsgAPIKeyMissing)
	}

	// Artwork cache is optional
	var (
		artworkCache download.ArtworkCache
		cleanupJob   *storage.CleanupJob
	)
	if cfg.Storage.Endpoint != "" {
		store, err := storage.NewArtworkStore(&cfg.Storage)
		if err != nil {
			log.Error("Failed to initialize artwork store", "error", err)
			os.Exit(1)
		}
		artworkCache = store
		cleanupJob = storage.NewCleanupJob(store, storage.DefaultCleanupConfig(), log)
		if err := cleanupJob.Start(); err != nil {
			log.Warn("Failed to start artwork cleanup job", "error", err)
		}
		log.Info("Artwork cache enabled", "endpoint", cfg.Storage.Endpoint, "bucket", cfg.Storage.Bucket)
	}

	// Initialize handlers
	authHandler := auth.NewAuthHandler(gateway, auth.DefaultPages(), log)
	myListHandler := mylist.NewHandler(mylist.HandlerConfig{
		Repo:          savedMovieRepo,
		ServerSync:    cfg.MyList.ServerSync,
		Catalog:       catalogClient,
		Checker:       gateway,
		SecureCookies: cfg.Session.SecureCookies,
		Logger:        log,
	})
	uiHandler := ui.NewHandler(catalogClient, gateway, myListHandler, log)
	downloadHandler := download.NewHandler(
		download.NewService(catalogClient, artworkCache, nil, log),
		gateway,
		log,
	)
	healthHandler := health.NewHandler(health.Config{
		DB:          dbPool,
		RedisClient: redisClient,
		Version:     Version,
	})

	// Initialize middleware
	sessionAuth := appmw.NewSessionAuth(gateway)
	loginLimiter := appmw.NewRateLimiter(cfg.Server.LoginRateLimit, time.Minute)
	defer loginLimiter.Stop()

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appmw.StructuredLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(metrics.Middleware)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health and metrics endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(sessionAuth.Optional)

		auth.RegisterRoutes(r, authHandler, loginLimiter.LimitByIP, sessionAuth.RequireLogin)
		ui.RegisterRoutes(r, uiHandler)
		mylist.RegisterRoutes(r, myListHandler)
		download.RegisterRoutes(r, downloadHandler)
	})

	// Create server
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("Starting server", "addr", addr, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	healthHandler.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cleanupJob != nil {
		cleanupJob.Stop()
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Server exited")
}

// setupDatabase creates and configures the database connection pool
func setupDatabase(cfg *config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 20
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 5 * time.Minute
	poolConfig.MaxConnIdleTime = 1 * time.Minute
	poolConfig.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := metrics.PingDatabase(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Connected to database", "name", cfg.Database.DBName, "host", cfg.Database.Host, "port", cfg.Database.Port)
	return pool, nil
}
