package arena

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/agora-arena/agora/internal/judge"
	"github.com/agora-arena/agora/internal/model"
	"github.com/agora-arena/agora/internal/rating"
	"github.com/agora-arena/agora/internal/storage"
)

// ErrSameAgent is returned when a caller requests a debate between an
// agent and itself.
var ErrSameAgent = errors.New("arena: debate requires two distinct agents")

// ErrMissingAgents is returned when neither Auto nor both agent ids are set.
var ErrMissingAgents = errors.New("arena: both agent ids required unless auto-matching")

// judgeTemperature keeps judging deterministic-ish regardless of how hot
// the argument generation runs.
const judgeTemperature = 0.2

// Run executes one debate end to end and blocks until it reaches a
// terminal status. The returned Debate reflects the final persisted state.
// Live events are published to the broadcaster as the debate progresses;
// callers that want them must subscribe before calling Run.
//
// Failures after the debate row exists mark it failed (rounds already
// produced are preserved) and emit an error event before returning.
func (o *Orchestrator) Run(ctx context.Context, req StartRequest) (model.Debate, error) {
	started := time.Now()

	agentA, agentB, err := o.resolvePair(ctx, req)
	if err != nil {
		return model.Debate{}, err
	}

	topic := req.Topic
	if topic == "" {
		topic = defaultTopics[rand.IntN(len(defaultTopics))]
	}

	debate, err := o.store.CreateDebate(ctx, model.Debate{
		Topic:    topic,
		AgentAID: agentA.ID,
		AgentBID: agentB.ID,
	})
	if err != nil {
		return model.Debate{}, fmt.Errorf("arena: create debate: %w", err)
	}
	if err := o.store.MarkDebateInProgress(ctx, debate.ID); err != nil {
		err = fmt.Errorf("arena: start debate: %w", err)
		o.fail(ctx, debate.ID, started, err)
		return model.Debate{}, err
	}
	if req.OnCreated != nil {
		req.OnCreated(debate.ID)
	}

	logger := o.logger.With("debate_id", debate.ID, "agent_a", agentA.Name, "agent_b", agentB.Name)
	logger.Info("debate started", "topic", topic)

	o.publish(debate.ID, model.EventMatched, model.MatchedPayload{
		DebateID: debate.ID,
		Topic:    topic,
		AgentA:   agentA.Summarize(),
		AgentB:   agentB.Summarize(),
	})

	rounds, err := o.runRounds(ctx, debate.ID, topic, agentA, agentB)
	if err != nil {
		o.fail(ctx, debate.ID, started, err)
		return model.Debate{}, err
	}

	o.publish(debate.ID, model.EventJudging, struct{}{})

	raw, err := o.generate(ctx, judge.SystemPrompt, judge.UserPrompt(topic, agentA, agentB, rounds), judgeTemperature)
	if err != nil {
		err = fmt.Errorf("arena: judge generation: %w", err)
		o.fail(ctx, debate.ID, started, err)
		return model.Debate{}, err
	}
	verdict := judge.Parse(raw)
	if verdict.Source == model.VerdictDefaulted {
		logger.Warn("judge response unparsable, defaulted verdict applied")
	}

	winner, loser := agentA, agentB
	if verdict.Winner == 2 {
		winner, loser = agentB, agentA
	}

	res := rating.Update(winner.Rating, loser.Rating, rating.DefaultK)
	outcome, err := o.applyResult(ctx, winner, loser, res)
	if err != nil {
		o.fail(ctx, debate.ID, started, err)
		return model.Debate{}, err
	}
	if err := o.store.CompleteDebate(ctx, debate.ID, verdict, winner.ID, res.WinnerDelta, res.LoserDelta); err != nil {
		err = fmt.Errorf("arena: complete debate: %w", err)
		o.fail(ctx, debate.ID, started, err)
		return model.Debate{}, err
	}

	// Ratings and the verdict are already durable; a lost outbox write is
	// recoverable by the economy collaborator, not worth failing the debate.
	if err := o.economy.InsertEconomyEvents(ctx, economyEvents(debate.ID, winner, loser, outcome.TierChanges)); err != nil {
		logger.Error("economy outbox write failed", "error", err)
	}

	o.publish(debate.ID, model.EventResult, model.ResultPayload{
		Winner:    model.ResultSide{ID: winner.ID, Name: winner.Name, Delta: res.WinnerDelta, NewRating: outcome.Winner.Rating},
		Loser:     model.ResultSide{ID: loser.ID, Name: loser.Name, Delta: res.LoserDelta, NewRating: outcome.Loser.Rating},
		ScoresA:   verdict.ScoresA,
		ScoresB:   verdict.ScoresB,
		Reasoning: verdict.Reasoning,
	})
	o.publish(debate.ID, model.EventComplete, model.CompletePayload{DebateID: debate.ID})

	logger.Info("debate completed",
		"winner", winner.Name,
		"winner_delta", res.WinnerDelta,
		"verdict_source", verdict.Source,
	)
	o.recordOutcome(ctx, model.DebateStatusCompleted, started)

	now := time.Now().UTC()
	debate.Rounds = rounds
	debate.Verdict = &verdict
	debate.WinnerID = &winner.ID
	debate.WinnerDelta = res.WinnerDelta
	debate.LoserDelta = res.LoserDelta
	debate.Status = model.DebateStatusCompleted
	debate.CompletedAt = &now
	return debate, nil
}

// resolvePair loads the two contestants, either from the explicit ids or
// via the matchmaker when Auto is set.
func (o *Orchestrator) resolvePair(ctx context.Context, req StartRequest) (model.Agent, model.Agent, error) {
	if req.Auto {
		a, b, err := o.matcher.Match(ctx)
		if err != nil {
			return model.Agent{}, model.Agent{}, err
		}
		return a, b, nil
	}
	if req.AgentAID == nil || req.AgentBID == nil {
		return model.Agent{}, model.Agent{}, ErrMissingAgents
	}
	if *req.AgentAID == *req.AgentBID {
		return model.Agent{}, model.Agent{}, ErrSameAgent
	}
	a, err := o.store.GetAgent(ctx, *req.AgentAID)
	if err != nil {
		return model.Agent{}, model.Agent{}, fmt.Errorf("arena: load agent A: %w", err)
	}
	b, err := o.store.GetAgent(ctx, *req.AgentBID)
	if err != nil {
		return model.Agent{}, model.Agent{}, fmt.Errorf("arena: load agent B: %w", err)
	}
	return a, b, nil
}

// runRounds plays the fixed round loop, persisting each round as it
// finishes and returning the full transcript.
func (o *Orchestrator) runRounds(ctx context.Context, debateID uuid.UUID, topic string, agentA, agentB model.Agent) ([]model.Round, error) {
	rounds := make([]model.Round, 0, model.RoundsPerDebate)
	for i := 1; i <= model.RoundsPerDebate; i++ {
		o.publish(debateID, model.EventRoundStart, model.RoundStartPayload{Round: i})

		o.publish(debateID, model.EventSpeaking, model.SpeakingPayload{Round: i, Slot: 1, Name: agentA.Name})
		argA, err := o.generate(ctx,
			debaterSystemPrompt(agentA),
			debaterUserPrompt(topic, i, 1, agentA, agentB, rounds, ""),
			o.cfg.Temperature,
		)
		if err != nil {
			return nil, fmt.Errorf("arena: round %d argument for %s: %w", i, agentA.Name, err)
		}
		o.publish(debateID, model.EventArgument, model.ArgumentPayload{Round: i, Slot: 1, Name: agentA.Name, Argument: argA})

		o.publish(debateID, model.EventSpeaking, model.SpeakingPayload{Round: i, Slot: 2, Name: agentB.Name})
		argB, err := o.generate(ctx,
			debaterSystemPrompt(agentB),
			debaterUserPrompt(topic, i, 2, agentA, agentB, rounds, argA),
			o.cfg.Temperature,
		)
		if err != nil {
			return nil, fmt.Errorf("arena: round %d argument for %s: %w", i, agentB.Name, err)
		}
		o.publish(debateID, model.EventArgument, model.ArgumentPayload{Round: i, Slot: 2, Name: agentB.Name, Argument: argB})

		round := model.Round{Index: i, ArgumentA: argA, ArgumentB: argB}
		if err := o.store.AppendRound(ctx, debateID, round); err != nil {
			return nil, fmt.Errorf("arena: persist round %d: %w", i, err)
		}
		rounds = append(rounds, round)
	}
	return rounds, nil
}

// generate runs one generation call under its own deadline so a stalled
// backend fails the debate instead of hanging it.
func (o *Orchestrator) generate(ctx context.Context, system, prompt string, temperature float64) (string, error) {
	gctx, cancel := context.WithTimeout(ctx, o.cfg.GenTimeout)
	defer cancel()
	return o.gen.Generate(gctx, system, prompt, o.cfg.MaxTokens, temperature)
}

func (o *Orchestrator) applyResult(ctx context.Context, winner, loser model.Agent, res rating.Result) (storage.DebateOutcome, error) {
	outcome, err := o.store.ApplyDebateResult(ctx,
		storage.ResultUpdate{AgentID: winner.ID, Delta: res.WinnerDelta, Won: true},
		storage.ResultUpdate{AgentID: loser.ID, Delta: res.LoserDelta, Won: false},
	)
	if err != nil {
		return storage.DebateOutcome{}, fmt.Errorf("arena: apply result: %w", err)
	}
	return outcome, nil
}

// fail moves the debate to failed and tells spectators. Runs detached from
// the caller's cancellation so the terminal status still lands when the
// failure was the context itself.
func (o *Orchestrator) fail(ctx context.Context, debateID uuid.UUID, started time.Time, cause error) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.store.FailDebate(dctx, debateID); err != nil {
		o.logger.Error("marking debate failed", "debate_id", debateID, "error", err)
	}
	o.publish(debateID, model.EventError, model.ErrorPayload{Message: cause.Error()})
	o.logger.Error("debate failed", "debate_id", debateID, "error", cause)
	o.recordOutcome(dctx, model.DebateStatusFailed, started)
}

func (o *Orchestrator) publish(debateID uuid.UUID, event string, data any) {
	o.broadcaster.Publish(debateID, model.StreamEvent{Event: event, Data: data})
}

// economyEvents builds the outbox batch for one judged debate: the
// winner's owner reward, a price move per contestant, and one event per
// tier change.
func economyEvents(debateID uuid.UUID, winner, loser model.Agent, changes []storage.TierChange) []model.EconomyEvent {
	events := []model.EconomyEvent{
		{
			DebateID: debateID,
			Type:     model.EconomyReward,
			OwnerID:  ptr(winner.OwnerID),
			Amount:   WinnerOwnerReward,
		},
		{
			DebateID:  debateID,
			Type:      model.EconomyPriceMove,
			AgentID:   ptr(winner.ID),
			Direction: model.PriceUp,
		},
		{
			DebateID:  debateID,
			Type:      model.EconomyPriceMove,
			AgentID:   ptr(loser.ID),
			Direction: model.PriceDown,
		},
	}
	for _, c := range changes {
		id := c.AgentID
		events = append(events, model.EconomyEvent{
			DebateID: debateID,
			Type:     model.EconomyTierChange,
			AgentID:  &id,
			Tier:     c.To,
		})
	}
	return events
}

func ptr(id uuid.UUID) *uuid.UUID { return &id }
