// Command agora-debate runs a single debate from the terminal and prints the
// completed record as JSON. It shares the orchestrator with the HTTP server,
// so a debate run here is indistinguishable in the database from one started
// over the API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/agora-arena/agora/internal/arena"
	"github.com/agora-arena/agora/internal/config"
	"github.com/agora-arena/agora/internal/generation"
	"github.com/agora-arena/agora/internal/live"
	"github.com/agora-arena/agora/internal/matchmaker"
	"github.com/agora-arena/agora/internal/model"
	"github.com/agora-arena/agora/internal/storage"
)

func main() {
	agentA := flag.String("a", "", "first agent UUID (omit with -auto)")
	agentB := flag.String("b", "", "second agent UUID (omit with -auto)")
	auto := flag.Bool("auto", false, "let the matchmaker pick both agents")
	topic := flag.String("topic", "", "debate topic (random when empty)")
	quiet := flag.Bool("quiet", false, "suppress per-event progress on stderr")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, *agentA, *agentB, *auto, *topic, *quiet); err != nil {
		fmt.Fprintln(os.Stderr, "agora-debate:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, agentA, agentB string, auto bool, topic string, quiet bool) error {
	req := arena.StartRequest{Auto: auto, Topic: topic}
	if !auto {
		a, err := uuid.Parse(agentA)
		if err != nil {
			return fmt.Errorf("flag -a: %w", err)
		}
		b, err := uuid.Parse(agentB)
		if err != nil {
			return fmt.Errorf("flag -b: %w", err)
		}
		req.AgentAID, req.AgentBID = &a, &b
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := storage.New(ctx, cfg.DatabaseURL, cfg.NotifyURL, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer db.Close(ctx)

	gen := newGenerationProvider(cfg)
	broadcaster := live.NewBroadcaster(logger)
	orch := arena.New(db, gen, matchmaker.New(db), broadcaster, db, logger, arena.Config{
		GenTimeout:  cfg.GenTimeout,
		MaxTokens:   cfg.GenMaxTokens,
		Temperature: cfg.GenTemperature,
	})

	// Narrate progress on stderr so stdout stays clean JSON.
	if !quiet {
		req.OnCreated = func(debateID uuid.UUID) {
			broadcaster.Subscribe(debateID, func(ev model.StreamEvent) {
				narrate(os.Stderr, ev)
			})
		}
	}

	debate, err := orch.Run(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(debate)
}

// narrate prints a one-line human summary of a stream event.
func narrate(w *os.File, ev model.StreamEvent) {
	switch p := ev.Data.(type) {
	case model.MatchedPayload:
		fmt.Fprintf(w, "matched: %s vs %s — %q\n", p.AgentA.Name, p.AgentB.Name, p.Topic)
	case model.RoundStartPayload:
		fmt.Fprintf(w, "-- round %d (%s) --\n", p.Round, model.StageForRound(p.Round))
	case model.ArgumentPayload:
		fmt.Fprintf(w, "[%s] %s\n", p.Name, p.Argument)
	case model.ResultPayload:
		fmt.Fprintf(w, "verdict: winner %s — %s\n", p.Winner.Name, p.Reasoning)
	case model.ErrorPayload:
		fmt.Fprintf(w, "debate failed: %s\n", p.Message)
	default:
		// speaking, judging, complete: progress markers only.
		fmt.Fprintf(w, "%s\n", ev.Event)
	}
}

func newGenerationProvider(cfg config.Config) generation.Provider {
	switch cfg.GenProvider {
	case "openai":
		return generation.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)
	case "scripted":
		return generation.NewScriptedProvider(
			"I hold that the proposition stands on its merits.",
			"My opponent mistakes assertion for argument.",
			"Nothing raised so far disturbs my opening case.",
			"The rebuttal conceded the central point.",
			"In closing: the proposition survives every objection raised.",
			"In closing: my opponent defended a claim, not a reason.",
			`{"winner": 1, "reasoning": "Slot one argued with more substance.", "agent1": {"logic": 7, "evidence": 7, "persuasion": 7}, "agent2": {"logic": 6, "evidence": 6, "persuasion": 6}}`,
		)
	default:
		return generation.NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel)
	}
}
