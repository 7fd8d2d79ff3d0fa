// Health Journal - conversational health tracking server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/healthjournal/internal/api"
	"github.com/ashureev/healthjournal/internal/assistant"
	"github.com/ashureev/healthjournal/internal/auth"
	"github.com/ashureev/healthjournal/internal/config"
	"github.com/ashureev/healthjournal/internal/conversation"
	"github.com/ashureev/healthjournal/internal/domain"
	"github.com/ashureev/healthjournal/internal/identity"
	"github.com/ashureev/healthjournal/internal/insights"
	"github.com/ashureev/healthjournal/internal/metrics"
	"github.com/ashureev/healthjournal/internal/middleware"
	"github.com/ashureev/healthjournal/internal/realtime"
	"github.com/ashureev/healthjournal/internal/records"
	"github.com/ashureev/healthjournal/internal/storage"
	"github.com/ashureev/healthjournal/internal/store"
	"github.com/ashureev/healthjournal/internal/supabase"
	"github.com/ashureev/healthjournal/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "backend", cfg.Backend)

	// Local database: settings always, users and records for the sqlite backend.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	var (
		recordStore store.RecordStore = repo
		provider    auth.Provider
	)
	//nolint:nestif // Startup wiring is intentionally sequential to keep dependency setup explicit.
	if cfg.Backend == config.BackendSupabase {
		client, err := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.Key)
		if err != nil {
			slog.Error("Failed to initialize Supabase client", "error", err)
			os.Exit(1)
		}
		recordStore = supabase.NewRecordStore(client)
		provider = auth.NewSupabaseProvider(client.Auth, cfg.FrontendURL)
		slog.Info("Using Supabase for records and authentication", "url", cfg.Supabase.URL)
	} else {
		var opts []auth.LocalOption
		if cfg.Redis.Addr != "" {
			revocations, err := auth.NewRedisRevocations(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				slog.Error("Failed to connect to Redis", "error", err, "addr", cfg.Redis.Addr)
				os.Exit(1)
			}
			defer func() { _ = revocations.Close() }()
			opts = append(opts, auth.WithRevocations(revocations))
			slog.Info("Token revocations stored in Redis", "addr", cfg.Redis.Addr)
		}
		opts = append(opts, auth.WithNotifier(auth.NewLogNotifier(logger)))

		secret := cfg.Auth.JWTSecret
		if secret == "" {
			secret = "dev-only-secret"
			slog.Warn("JWT_SECRET not set, using development secret")
		}
		provider = auth.NewLocalProvider(repo, auth.LocalConfig{
			Secret:   secret,
			TokenTTL: cfg.Auth.TokenTTL,
			ResetTTL: cfg.Auth.ResetTTL,
		}, logger, opts...)
	}

	// Initialize services.
	assistantSvc, err := assistant.NewService(cfg.Assistant, logger)
	if err != nil {
		slog.Error("Failed to initialize assistant", "error", err, "mode", cfg.Assistant.Mode)
		os.Exit(1)
	}
	defer assistantSvc.Close()
	slog.Info("Assistant ready", "mode", assistantSvc.Mode())

	collector := metrics.NewCollector("healthjournal")
	hub := realtime.NewHub(logger)

	registry := conversation.NewRegistry(assistantSvc, cfg.WorkspaceTTL,
		conversation.WithLogger(logger),
		conversation.WithPublisher(conversation.Publishers{hub, collector}),
	)
	defer registry.Close()

	tracker := records.NewTracker(recordStore,
		records.WithListLimit(cfg.Analysis.ListLimit),
		records.WithCreateHook(func(kind domain.RecordKind) { collector.RecordCreated(kind) }),
	)
	analyzer := insights.NewAnalyzer(recordStore, insights.WithWindowDays(cfg.Analysis.WindowDays))

	var uploader insights.Uploader
	if cfg.StorageEnabled() {
		mc, err := storage.NewMinIO(context.Background(), cfg.Storage.Endpoint, cfg.Storage.AccessKey,
			cfg.Storage.SecretKey, cfg.Storage.Bucket, cfg.Storage.UseSSL, cfg.Storage.URLExpiry)
		if err != nil {
			slog.Error("Failed to initialize report storage", "error", err, "endpoint", cfg.Storage.Endpoint)
			os.Exit(1)
		}
		uploader = mc
		slog.Info("Report uploads enabled", "bucket", cfg.Storage.Bucket)
	}
	exporter := insights.NewExporter(analyzer, uploader, logger)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.MessagesPerMinute, cfg.RateLimit.Burst)
	limiter.OnLimit(collector.RateLimited.Inc)
	limitMessages := limiter.Middleware(func(r *http.Request) string {
		return identity.UserIDFromContext(r.Context())
	})

	// Initialize handlers.
	baseHandler := api.NewHandler(logger)
	healthHandler := api.NewHealthHandler(baseHandler, repo, assistantSvc)
	authHandler := api.NewAuthHandler(baseHandler, provider)
	workspaceHandler := api.NewWorkspaceHandler(baseHandler, registry, limitMessages)
	recordsHandler := api.NewRecordsHandler(baseHandler, tracker)
	insightsHandler := api.NewInsightsHandler(baseHandler, analyzer, exporter)
	settingsHandler := api.NewSettingsHandler(baseHandler, repo)
	voiceHandler := api.NewVoiceHandler(baseHandler, workspaceHandler, settingsHandler)

	snapshot := func(userID string) any { return registry.Get(userID).Snapshot() }
	wsHandler := realtime.NewWebSocketHandler(hub, snapshot, cfg.FrontendURL, cfg.IsDevelopment(), logger)

	// Setup router.
	r := chi.NewRouter()

	allowedOrigins := []string{"*"}
	if !cfg.IsDevelopment() {
		allowedOrigins = []string{cfg.FrontendURL}
	}

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(identity.StripQueryToken)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.Metrics(collector))
	r.Use(middleware.CORS(allowedOrigins))

	// Public routes.
	healthHandler.RegisterRoutes(r)
	authHandler.RegisterPublicRoutes(r)
	r.Handle("/metrics", collector.Handler())

	// Routes that require a session.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(provider, logger))

		authHandler.RegisterRoutes(r)
		workspaceHandler.RegisterRoutes(r)
		recordsHandler.RegisterRoutes(r)
		insightsHandler.RegisterRoutes(r)
		settingsHandler.RegisterRoutes(r)
		voiceHandler.RegisterRoutes(r)

		// WebSocket endpoint.
		r.Get("/ws/events", wsHandler.ServeHTTP)
	})

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Note: event streams are long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start workspace sweeper.
	registry.StartSweeper(ctx, 0, func(userID string) {
		hub.CloseUser(userID)
		collector.ActiveWorkspaces.Set(float64(registry.Len()))
	})
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				collector.ActiveWorkspaces.Set(float64(registry.Len()))
			case <-ctx.Done():
				return
			}
		}
	}()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
