package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/civicfix/api/internal/config"
	"github.com/civicfix/api/internal/database"
	"github.com/civicfix/api/internal/handler"
	"github.com/civicfix/api/internal/jobs"
	"github.com/civicfix/api/internal/middleware"
	"github.com/civicfix/api/internal/repository"
	"github.com/civicfix/api/internal/service"
)

func main() {
	// Initialize structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize database connection
	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,
	})

	ctx := context.Background()
	if err := db.Connect(ctx); err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	slog.Info("connected to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Database),
	)

	// Initialize session store. Redis keeps sessions across restarts; an
	// in-memory store serves development when no address is configured.
	var sessions service.SessionStore
	if cfg.Session.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Error("failed to connect to redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer func() { _ = redisClient.Close() }()
		sessions = service.NewRedisSessionStore(redisClient, cfg.Session.TTL)
		slog.Info("using redis session store", slog.String("addr", cfg.Session.RedisAddr))
	} else {
		sessions = service.NewMemorySessionStore(cfg.Session.TTL)
		slog.Info("using in-memory session store")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	problemRepo := repository.NewProblemRepository(db)

	// Initialize services
	authService := service.NewAuthService(service.AuthServiceConfig{
		UserRepo: userRepo,
		Sessions: sessions,
	})

	enrichmentService := service.NewEnrichmentService(cfg.AI, logger)
	notificationService := service.NewNotificationService(cfg.SMS, logger)
	if !notificationService.Enabled() {
		slog.Info("sms notifications disabled, no twilio credentials")
	}

	// Background enricher: submissions and edits both queue here
	enricher := jobs.NewEnricher(jobs.EnricherConfig{
		Store:     problemRepo,
		Suggester: enrichmentService,
		Logger:    logger,
	})
	enricher.Start()
	defer enricher.Stop()

	problemService := service.NewProblemService(service.ProblemServiceConfig{
		Repo:     problemRepo,
		Queue:    enricher,
		Notifier: notificationService,
		Logger:   logger,
	})

	// Seed sample problems in development
	if cfg.IsDevelopment() {
		seeder := service.NewSeederService(problemRepo)
		if created, err := seeder.SeedProblems(ctx); err != nil {
			slog.Warn("failed to seed sample problems", slog.String("error", err.Error()))
		} else if created > 0 {
			slog.Info("seeded sample problems", slog.Int("count", created))
		}
	}

	// Initialize rate limiter and idempotency store
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{})
	defer rateLimiter.Stop()

	idempotencyStore := middleware.NewIdempotencyStore(middleware.IdempotencyConfig{})
	defer idempotencyStore.Stop()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(handler.AuthHandlerConfig{
		AuthService: authService,
		Session:     cfg.Session,
		Logger:      logger,
	})
	problemHandler := handler.NewProblemHandler(handler.ProblemHandlerConfig{
		ProblemService: problemService,
		Upload:         cfg.Upload,
		Logger:         logger,
	})
	enrichmentHandler := handler.NewEnrichmentHandler(enrichmentService, logger)
	healthHandler := handler.NewHealthHandler(db)

	// Create router and register routes
	mux := http.NewServeMux()

	// Health and metrics endpoints
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Auth endpoints (public)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)

	authMiddleware := middleware.Auth(authService, cfg.Session.CookieName)
	mux.Handle("GET /api/auth/user", authMiddleware(http.HandlerFunc(authHandler.CurrentUser)))

	// Problem endpoints
	mux.HandleFunc("GET /api/problems", problemHandler.List)
	mux.Handle("POST /api/problems", authMiddleware(http.HandlerFunc(problemHandler.Submit)))
	mux.HandleFunc("GET /api/problems/{id}", problemHandler.Get)
	mux.HandleFunc("POST /api/problems/{id}/vote", problemHandler.Vote)
	mux.Handle("POST /api/problems/{id}/comments", authMiddleware(http.HandlerFunc(problemHandler.AddComment)))
	mux.HandleFunc("GET /api/problems/{id}/comments", problemHandler.GetComments)
	mux.Handle("POST /api/problems/{id}/solutions", authMiddleware(http.HandlerFunc(problemHandler.AddSolution)))
	mux.Handle("PATCH /api/problems/{id}/status", authMiddleware(http.HandlerFunc(problemHandler.UpdateStatus)))
	mux.Handle("PATCH /api/problems/{id}", authMiddleware(http.HandlerFunc(problemHandler.Edit)))

	// Delete endpoints. The by-id and multiple variants are public by design;
	// see the status/edit paths for the owner-scoped authorization.
	mux.Handle("DELETE /api/problems/{id}", authMiddleware(http.HandlerFunc(problemHandler.Delete)))
	mux.Handle("DELETE /api/problems/delete/most-recent", authMiddleware(http.HandlerFunc(problemHandler.DeleteMostRecent)))
	mux.HandleFunc("DELETE /api/problems/delete/by-id/{problemId}", problemHandler.DeleteByProblemID)
	mux.HandleFunc("DELETE /api/problems/delete/multiple", problemHandler.DeleteMany)

	// AI analysis preview (public, nothing persisted)
	mux.HandleFunc("POST /api/ai-suggestions", enrichmentHandler.Preview)

	// Uploaded images
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.Upload.Dir))))

	// Apply global middleware
	wrapped := middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.Recovery(logger),
		middleware.Metrics,
		middleware.CORS(cfg.Server.AllowedOrigins),
		middleware.RateLimit(rateLimiter),
		middleware.Idempotency(idempotencyStore),
		middleware.Compress,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      wrapped,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Server.Port),
			slog.String("env", cfg.Server.Env),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	slog.Info("server exited")
}
