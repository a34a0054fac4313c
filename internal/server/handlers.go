package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/agora-arena/agora/internal/arena"
	"github.com/agora-arena/agora/internal/live"
	"github.com/agora-arena/agora/internal/matchmaker"
	"github.com/agora-arena/agora/internal/model"
	"github.com/agora-arena/agora/internal/quota"
	"github.com/agora-arena/agora/internal/rating"
	"github.com/agora-arena/agora/internal/storage"
)

// Store is the query surface the HTTP layer reads from. *storage.DB
// satisfies it; handler tests substitute an in-memory fake.
type Store interface {
	CreateAgent(ctx context.Context, agent model.Agent) (model.Agent, error)
	GetAgent(ctx context.Context, id uuid.UUID) (model.Agent, error)
	ListAgents(ctx context.Context, limit, offset int) ([]model.Agent, error)
	Leaderboard(ctx context.Context, limit int) ([]model.Agent, error)
	GetDebate(ctx context.Context, id uuid.UUID) (model.Debate, error)
	ListDebates(ctx context.Context, limit, offset int) ([]model.Debate, error)
	ListEconomyEvents(ctx context.Context, after time.Time, limit int) ([]model.EconomyEvent, error)
	Ping(ctx context.Context) error
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	store               Store
	arena               *arena.Orchestrator
	broadcaster         *live.Broadcaster
	quota               quota.Limiter
	debateSem           *semaphore.Weighted
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
}

// HandlersDeps holds all dependencies for constructing Handlers.
type HandlersDeps struct {
	Store               Store
	Arena               *arena.Orchestrator
	Broadcaster         *live.Broadcaster
	Quota               quota.Limiter
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64

	// MaxConcurrentDebates caps in-flight debates; zero means 8.
	MaxConcurrentDebates int
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	q := d.Quota
	if q == nil {
		q = quota.NoopLimiter{}
	}
	maxDebates := d.MaxConcurrentDebates
	if maxDebates <= 0 {
		maxDebates = 8
	}
	return &Handlers{
		store:               d.Store,
		arena:               d.Arena,
		broadcaster:         d.Broadcaster,
		quota:               q,
		debateSem:           semaphore.NewWeighted(int64(maxDebates)),
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
	}
}

// HandleCreateAgent handles POST /v1/agents.
func (h *Handlers) HandleCreateAgent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBodyBytes)

	var req model.CreateAgentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if req.OwnerID == uuid.Nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "owner_id is required")
		return
	}

	agent := model.Agent{
		ID:         uuid.New(),
		OwnerID:    req.OwnerID,
		Name:       req.Name,
		Persona:    req.Persona,
		Philosophy: req.Philosophy,
		Faction:    req.Faction,
		Rating:     model.InitialRating,
		Tier:       rating.TierForRating(model.InitialRating),
	}
	if err := agent.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	created, err := h.store.CreateAgent(r.Context(), agent)
	if err != nil {
		h.logger.Error("create agent", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to create agent")
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

// HandleGetAgent handles GET /v1/agents/{agent_id}.
func (h *Handlers) HandleGetAgent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("agent_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid agent id")
		return
	}
	agent, err := h.store.GetAgent(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "agent not found")
			return
		}
		h.logger.Error("get agent", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to load agent")
		return
	}
	writeJSON(w, r, http.StatusOK, agent)
}

// HandleListAgents handles GET /v1/agents.
func (h *Handlers) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 50)
	agents, err := h.store.ListAgents(r.Context(), limit+1, offset)
	if err != nil {
		h.logger.Error("list agents", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to list agents")
		return
	}
	hasMore := len(agents) > limit
	if hasMore {
		agents = agents[:limit]
	}
	writeList(w, r, agents, limit, offset, hasMore)
}

// HandleLeaderboard handles GET /v1/leaderboard.
func (h *Handlers) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := parseLimitOffset(r, 20)
	agents, err := h.store.Leaderboard(r.Context(), limit)
	if err != nil {
		h.logger.Error("leaderboard", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to load leaderboard")
		return
	}
	writeJSON(w, r, http.StatusOK, agents)
}

// HandleGetDebate handles GET /v1/debates/{debate_id}.
func (h *Handlers) HandleGetDebate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("debate_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid debate id")
		return
	}
	debate, err := h.store.GetDebate(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "debate not found")
			return
		}
		h.logger.Error("get debate", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to load debate")
		return
	}
	writeJSON(w, r, http.StatusOK, debate)
}

// HandleListDebates handles GET /v1/debates.
func (h *Handlers) HandleListDebates(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 50)
	debates, err := h.store.ListDebates(r.Context(), limit+1, offset)
	if err != nil {
		h.logger.Error("list debates", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to list debates")
		return
	}
	hasMore := len(debates) > limit
	if hasMore {
		debates = debates[:limit]
	}
	writeList(w, r, debates, limit, offset, hasMore)
}

// HandleEconomyEvents handles GET /v1/economy/events.
// Poll-based catch-up for ledger consumers that missed a notification.
func (h *Handlers) HandleEconomyEvents(w http.ResponseWriter, r *http.Request) {
	var after time.Time
	if v := r.URL.Query().Get("after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "after must be RFC 3339")
			return
		}
		after = t
	}
	limit, _ := parseLimitOffset(r, 100)

	events, err := h.store.ListEconomyEvents(r.Context(), after, limit)
	if err != nil {
		h.logger.Error("list economy events", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to list events")
		return
	}
	writeJSON(w, r, http.StatusOK, events)
}

// HandleStartDebate handles POST /v1/debates.
func (h *Handlers) HandleStartDebate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBodyBytes)

	var req model.StartDebateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "user_id is required")
		return
	}
	if !req.Auto && (req.AgentAID == nil || req.AgentBID == nil) {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "set auto or both agent ids")
		return
	}

	// The quota is spent before matchmaking so a rejected request leaves
	// no partial state behind. A limiter malfunction fails open: debates
	// keep flowing and the error shows up in the logs.
	allowed, remaining, err := h.quota.Allow(r.Context(), req.UserID.String())
	if err != nil {
		h.logger.Error("quota check failed, allowing request", "error", err)
		allowed = true
	}
	if !allowed {
		writeErrorDetails(w, r, http.StatusTooManyRequests, model.ErrCodeQuotaExceeded,
			"daily debate limit reached", model.QuotaDetails{Limit: h.quota.Limit(), Remaining: remaining})
		return
	}

	start := arena.StartRequest{
		AgentAID: req.AgentAID,
		AgentBID: req.AgentBID,
		Auto:     req.Auto,
		Topic:    req.Topic,
	}

	// Debates hold a generation backend busy for minutes; cap how many run
	// at once and queue the rest until a slot frees or the caller gives up.
	if err := h.debateSem.Acquire(r.Context(), 1); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeInternalError, "server busy")
		return
	}

	if req.Stream {
		h.streamDebate(w, r, start, func() { h.debateSem.Release(1) })
		return
	}

	debate, err := h.arena.Run(r.Context(), start)
	h.debateSem.Release(1)
	if err != nil {
		h.writeDebateError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, debate)
}

// writeDebateError maps orchestration failures onto API error codes.
func (h *Handlers) writeDebateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, matchmaker.ErrNoPair):
		writeError(w, r, http.StatusConflict, model.ErrCodeNoMatch, "no eligible pairing available")
	case errors.Is(err, arena.ErrSameAgent), errors.Is(err, arena.ErrMissingAgents):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "agent not found")
	default:
		h.logger.Error("debate run", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeDebateFailed, "debate failed")
	}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	pgStatus := "connected"
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.store.Ping(r.Context()); err != nil {
		pgStatus = "disconnected"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, r, httpStatus, model.HealthResponse{
		Status:   status,
		Version:  h.version,
		Postgres: pgStatus,
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	})
}

// parseLimitOffset reads limit/offset query params with a default limit.
func parseLimitOffset(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// writeList writes the paginated list envelope.
func writeList(w http.ResponseWriter, r *http.Request, data any, limit, offset int, hasMore bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(model.ListResponse{
		Data:    data,
		HasMore: hasMore,
		Limit:   limit,
		Offset:  offset,
		Meta: model.ResponseMeta{
			RequestID: RequestIDFromContext(r.Context()),
			Timestamp: time.Now().UTC(),
		},
	})
}
