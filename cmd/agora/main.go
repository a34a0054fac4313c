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

	"github.com/joho/godotenv"

	"github.com/agora-arena/agora/internal/arena"
	"github.com/agora-arena/agora/internal/config"
	"github.com/agora-arena/agora/internal/generation"
	"github.com/agora-arena/agora/internal/live"
	"github.com/agora-arena/agora/internal/matchmaker"
	"github.com/agora-arena/agora/internal/quota"
	"github.com/agora-arena/agora/internal/server"
	"github.com/agora-arena/agora/internal/storage"
	"github.com/agora-arena/agora/internal/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("AGORA_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("agora starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Connect to database.
	db, err := storage.New(ctx, cfg.DatabaseURL, cfg.NotifyURL, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer db.Close(ctx)

	// Register connection pool OTEL metrics (after telemetry.Init).
	db.RegisterPoolMetrics()

	// Run migrations (dev mode only; production uses Atlas).
	// RunMigrations tracks applied files in schema_migrations and skips duplicates,
	// so errors here indicate real failures (not "already exists").
	if err := db.RunMigrations(ctx, os.DirFS("migrations")); err != nil {
		slog.Warn("migrations failed", "error", err)
	}

	// Create generation provider.
	gen := newGenerationProvider(cfg, logger)

	// Create matchmaker and live event broadcaster.
	matcher := matchmaker.New(db)
	broadcaster := live.NewBroadcaster(logger)

	// Create the debate orchestrator. Economy events ride the same *storage.DB
	// so outbox inserts and pg_notify wakeups share one pool.
	orch := arena.New(db, gen, matcher, broadcaster, db, logger, arena.Config{
		GenTimeout:  cfg.GenTimeout,
		MaxTokens:   cfg.GenMaxTokens,
		Temperature: cfg.GenTemperature,
	})

	// Create daily debate quota.
	var limiter quota.Limiter
	if cfg.DailyDebateLimit > 0 {
		limiter = quota.NewDailyLimiter(cfg.DailyDebateLimit)
		defer func() { _ = limiter.Close() }()
		logger.Info("daily debate quota: enabled", "limit", cfg.DailyDebateLimit)
	} else {
		limiter = quota.NoopLimiter{}
		logger.Info("daily debate quota: disabled")
	}

	// Create and start HTTP server.
	srv := server.New(server.ServerConfig{
		Store:                db,
		Arena:                orch,
		Broadcaster:          broadcaster,
		Logger:               logger,
		Quota:                limiter,
		Port:                 cfg.Port,
		ReadTimeout:          cfg.ReadTimeout,
		WriteTimeout:         cfg.WriteTimeout,
		Version:              version,
		MaxRequestBodyBytes:  cfg.MaxRequestBodyBytes,
		MaxConcurrentDebates: cfg.MaxConcurrentDebates,
	})

	// Start HTTP server in background.
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	// Graceful shutdown: stop accepting new requests and drain in-flight ones.
	// Debates run detached from request contexts, so a shutdown mid-debate
	// still lets the current round's generation calls finish or time out.
	slog.Info("agora shutting down")

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("agora stopped")
	return nil
}

// newGenerationProvider creates a text generation provider based on
// configuration. Provider selection: "ollama" (default), "openai", or
// "scripted" (canned responses, for local development without a model).
func newGenerationProvider(cfg config.Config, logger *slog.Logger) generation.Provider {
	switch cfg.GenProvider {
	case "openai":
		logger.Info("generation provider: openai", "model", cfg.OpenAIModel)
		return generation.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)

	case "scripted":
		// One full debate's worth of calls: three rounds of paired arguments,
		// then the judge. Past that the provider repeats the judge verdict,
		// which still parses, so repeated dev debates stay functional.
		logger.Warn("generation provider: scripted (canned arguments, dev only)")
		return generation.NewScriptedProvider(
			"I hold that the proposition stands on its merits.",
			"My opponent mistakes assertion for argument.",
			"Nothing raised so far disturbs my opening case.",
			"The rebuttal conceded the central point.",
			"In closing: the proposition survives every objection raised.",
			"In closing: my opponent defended a claim, not a reason.",
			`{"winner": 1, "reasoning": "Slot one argued with more substance.", "agent1": {"logic": 7, "evidence": 7, "persuasion": 7}, "agent2": {"logic": 6, "evidence": 6, "persuasion": 6}}`,
		)

	default: // "ollama"; config.Validate rejects anything else.
		logger.Info("generation provider: ollama", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
		return generation.NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel)
	}
}
