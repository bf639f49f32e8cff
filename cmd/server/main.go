// PJ - personal companion chat server
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

	"github.com/ashureev/pj-companion/internal/api"
	"github.com/ashureev/pj-companion/internal/chat"
	"github.com/ashureev/pj-companion/internal/config"
	"github.com/ashureev/pj-companion/internal/llm"
	"github.com/ashureev/pj-companion/internal/middleware"
	"github.com/ashureev/pj-companion/internal/search"
	"github.com/ashureev/pj-companion/internal/store"
	"github.com/ashureev/pj-companion/internal/telemetry"
	"github.com/ashureev/pj-companion/internal/ws"
	"github.com/ashureev/pj-companion/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, closeLog, err := telemetry.InitLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := closeLog(); closeErr != nil {
			slog.Error("Failed to close log file", "error", closeErr)
		}
	}()

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.InitTelemetry(context.Background(), cfg.Telemetry.Dir, version)
		if err != nil {
			slog.Error("Failed to initialize telemetry", "error", err)
			os.Exit(1)
		}
		defer shutdownTelemetry()
		slog.Info("Telemetry export enabled", "dir", cfg.Telemetry.Dir)
	}

	slog.Info("Starting server", "port", cfg.Port, "version", version, "model", cfg.OpenAI.Model)

	// Initialize dependencies.
	registry := store.NewRegistry(store.Options{
		Persona:         chat.DefaultPersona,
		MaxTurns:        cfg.Session.MaxTurns,
		TTL:             cfg.Session.TTL,
		CleanupInterval: cfg.Session.CleanupInterval,
	})

	fetcher, err := search.NewFetcher(search.Config{
		Endpoint: cfg.Search.Endpoint,
		Timeout:  cfg.Search.Timeout,
	})
	if err != nil {
		slog.Error("Failed to initialize search fetcher", "error", err)
		os.Exit(1)
	}

	// A nil interface, never a typed nil, marks the completion path as unconfigured.
	var completer chat.Completer
	if cfg.HasCompletionKey() {
		client, err := llm.NewClient(llm.Config{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
			Timeout: cfg.OpenAI.Timeout,
		})
		if err != nil {
			slog.Error("Failed to initialize completion client", "error", err)
			os.Exit(1)
		}
		completer = client
		slog.Info("Completion client initialized", "model", client.Model())
	} else {
		slog.Warn("OPENAI_API_KEY not set, chat completions will fail until it is configured")
	}

	orchestrator := chat.New(registry, completer, fetcher,
		chat.WithSearchLimit(cfg.Search.Limit),
		chat.WithLogger(logger),
	)

	// Initialize handlers.
	healthHandler := api.NewHealthHandler(registry)
	chatHandler := api.NewChatHandler(orchestrator, registry)
	searchHandler := api.NewSearchHandler(fetcher)
	conns := ws.NewConnManager()
	wsHandler := ws.NewHandler(orchestrator, conns, cfg.CORSAllowedOrigins)
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.Sweep(registry))

	// Public routes.
	healthHandler.RegisterRoutes(r)
	r.Handle("/ui", web.UIHandler("/ui"))
	r.Handle("/ui/*", web.UIHandler("/ui"))

	// Routes that reach the completion or search backends are rate limited.
	r.Group(func(r chi.Router) {
		r.Use(limiter.Handler)
		chatHandler.RegisterRoutes(r)
		searchHandler.RegisterRoutes(r)
		r.Get("/ws", wsHandler.ServeHTTP)
	})

	// Create server.
	// WebSocket connections are long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if limiter.Enabled() {
		go limiter.Run(ctx, 5*time.Minute)
	}

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

	conns.CloseAll("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	dropped := registry.Len()
	registry.Clear()
	slog.Info("Server stopped successfully", "sessions_dropped", dropped)
}
