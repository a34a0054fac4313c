package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/agora-arena/agora/internal/arena"
	"github.com/agora-arena/agora/internal/live"
	"github.com/agora-arena/agora/internal/quota"
)

// Server is the Agora HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
type ServerConfig struct {
	// Required dependencies.
	Store       Store
	Arena       *arena.Orchestrator
	Broadcaster *live.Broadcaster
	Logger      *slog.Logger

	// Optional dependencies (nil = disabled).
	Quota quota.Limiter

	// HTTP server settings.
	Port                 int
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	Version              string
	MaxRequestBodyBytes  int64
	MaxConcurrentDebates int
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Store:                cfg.Store,
		Arena:                cfg.Arena,
		Broadcaster:          cfg.Broadcaster,
		Quota:                cfg.Quota,
		Logger:               cfg.Logger,
		Version:              cfg.Version,
		MaxRequestBodyBytes:  cfg.MaxRequestBodyBytes,
		MaxConcurrentDebates: cfg.MaxConcurrentDebates,
	})

	mux := http.NewServeMux()

	// Agents.
	mux.HandleFunc("POST /v1/agents", h.HandleCreateAgent)
	mux.HandleFunc("GET /v1/agents", h.HandleListAgents)
	mux.HandleFunc("GET /v1/agents/{agent_id}", h.HandleGetAgent)
	mux.HandleFunc("GET /v1/leaderboard", h.HandleLeaderboard)

	// Debates.
	mux.HandleFunc("POST /v1/debates", h.HandleStartDebate)
	mux.HandleFunc("GET /v1/debates", h.HandleListDebates)
	mux.HandleFunc("GET /v1/debates/{debate_id}", h.HandleGetDebate)
	mux.HandleFunc("GET /v1/debates/{debate_id}/events", h.HandleDebateEvents)

	// Economy outbox polling.
	mux.HandleFunc("GET /v1/economy/events", h.HandleEconomyEvents)

	// Health (no auth, no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
