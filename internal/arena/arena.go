// Package arena drives a debate end to end: matchmaking, the round loop,
// judging, the rating update, and the economy fallout.
//
// Both deployment shapes (the long-lived HTTP service and the one-shot
// runner) are thin adapters over the one Orchestrator here; orchestration
// logic must never be duplicated per deployment.
package arena

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/agora-arena/agora/internal/generation"
	"github.com/agora-arena/agora/internal/live"
	"github.com/agora-arena/agora/internal/matchmaker"
	"github.com/agora-arena/agora/internal/model"
	"github.com/agora-arena/agora/internal/storage"
	"github.com/agora-arena/agora/internal/telemetry"
)

// Store is the persistence surface the orchestrator needs. *storage.DB
// satisfies it; tests substitute an in-memory fake.
type Store interface {
	GetAgent(ctx context.Context, id uuid.UUID) (model.Agent, error)
	CreateDebate(ctx context.Context, debate model.Debate) (model.Debate, error)
	MarkDebateInProgress(ctx context.Context, id uuid.UUID) error
	AppendRound(ctx context.Context, id uuid.UUID, round model.Round) error
	CompleteDebate(ctx context.Context, id uuid.UUID, verdict model.Verdict, winnerID uuid.UUID, winnerDelta, loserDelta int) error
	FailDebate(ctx context.Context, id uuid.UUID) error
	ApplyDebateResult(ctx context.Context, winner, loser storage.ResultUpdate) (storage.DebateOutcome, error)
}

// EconomySink receives the outbox events a judged debate produces.
// *storage.DB satisfies it.
type EconomySink interface {
	InsertEconomyEvents(ctx context.Context, events []model.EconomyEvent) error
}

// WinnerOwnerReward is the credit grant to the winning agent's owner.
const WinnerOwnerReward = 100

// Config tunes one Orchestrator.
type Config struct {
	// GenTimeout bounds each individual generation call. The debate fails
	// (never hangs) when the generation service stalls past it.
	GenTimeout time.Duration
	// MaxTokens per argument completion.
	MaxTokens int
	// Temperature for argument generation; judging always runs colder.
	Temperature float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		GenTimeout:  90 * time.Second,
		MaxTokens:   700,
		Temperature: 0.9,
	}
}

// Orchestrator runs debates. Safe for concurrent use: debates in flight
// share nothing but the injected collaborators, each of which is
// concurrency-safe itself.
type Orchestrator struct {
	store       Store
	gen         generation.Provider
	matcher     *matchmaker.Matchmaker
	broadcaster *live.Broadcaster
	economy     EconomySink
	logger      *slog.Logger
	cfg         Config

	debateDuration metric.Float64Histogram
	debateOutcomes metric.Int64Counter
}

// New creates an Orchestrator.
func New(store Store, gen generation.Provider, matcher *matchmaker.Matchmaker, broadcaster *live.Broadcaster, economy EconomySink, logger *slog.Logger, cfg Config) *Orchestrator {
	meter := telemetry.Meter("agora/arena")
	dur, _ := meter.Float64Histogram("agora.debate.duration",
		metric.WithDescription("Wall-clock time of a full debate (ms)"),
		metric.WithUnit("ms"),
	)
	outcomes, _ := meter.Int64Counter("agora.debate.outcomes",
		metric.WithDescription("Debates by terminal status"),
	)
	return &Orchestrator{
		store:          store,
		gen:            gen,
		matcher:        matcher,
		broadcaster:    broadcaster,
		economy:        economy,
		logger:         logger,
		cfg:            cfg,
		debateDuration: dur,
		debateOutcomes: outcomes,
	}
}

// StartRequest describes one debate to run. Either both agent ids are set
// or Auto is true and the matchmaker selects the pairing.
type StartRequest struct {
	AgentAID *uuid.UUID
	AgentBID *uuid.UUID
	Auto     bool
	Topic    string

	// OnCreated, when set, runs once the debate row exists but before the
	// first event is published. Callers use it to attach stream
	// subscribers without missing events.
	OnCreated func(debateID uuid.UUID)
}

func (o *Orchestrator) recordOutcome(ctx context.Context, status model.DebateStatus, started time.Time) {
	o.debateDuration.Record(ctx, float64(time.Since(started).Milliseconds()))
	o.debateOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(status)),
	))
}
