package storage_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-arena/agora/internal/model"
	"github.com/agora-arena/agora/internal/storage"
	"github.com/agora-arena/agora/internal/testutil"
)

// testDB holds a shared test database connection for all tests in this package.
var testDB *storage.DB

func TestMain(m *testing.M) {
	tc := testutil.MustStartPostgres()

	db, err := tc.NewTestDB(context.Background(), testutil.TestLogger())
	if err != nil {
		tc.Terminate()
		panic(err)
	}
	testDB = db

	code := m.Run()

	testDB.Close(context.Background())
	tc.Terminate()
	os.Exit(code)
}

func newAgent(t *testing.T, name string, rating int) model.Agent {
	t.Helper()
	agent, err := testDB.CreateAgent(context.Background(), model.Agent{
		OwnerID:    uuid.New(),
		Name:       name,
		Persona:    "integration test persona",
		Philosophy: "whatever wins",
		Faction:    model.FactionPragmatists,
		Rating:     rating,
		Tier:       model.TierBronze,
	})
	require.NoError(t, err)
	return agent
}

func TestAgentRoundtrip(t *testing.T) {
	ctx := context.Background()
	created := newAgent(t, "Roundtrip", 1000)

	got, err := testDB.GetAgent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Roundtrip", got.Name)
	assert.Equal(t, 1000, got.Rating)
	assert.Equal(t, model.TierBronze, got.Tier)
	assert.Equal(t, 0, got.TotalDebates)

	_, err = testDB.GetAgent(ctx, uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSampleAgentsLimit(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		newAgent(t, "Sampled", 1000)
	}

	agents, err := testDB.SampleAgents(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, agents, 2)
}

func TestDebateLifecycle(t *testing.T) {
	ctx := context.Background()
	a := newAgent(t, "LifecycleA", 1000)
	b := newAgent(t, "LifecycleB", 1000)

	debate, err := testDB.CreateDebate(ctx, model.Debate{
		Topic:    "integration topic",
		AgentAID: a.ID,
		AgentBID: b.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, model.DebateStatusPending, debate.Status)

	// Rounds cannot be appended before the debate starts.
	err = testDB.AppendRound(ctx, debate.ID, model.Round{Index: 1, ArgumentA: "x", ArgumentB: "y"})
	require.Error(t, err)

	require.NoError(t, testDB.MarkDebateInProgress(ctx, debate.ID))
	// Starting twice is rejected.
	require.Error(t, testDB.MarkDebateInProgress(ctx, debate.ID))

	require.NoError(t, testDB.AppendRound(ctx, debate.ID, model.Round{Index: 1, ArgumentA: "a1", ArgumentB: "b1"}))
	require.NoError(t, testDB.AppendRound(ctx, debate.ID, model.Round{Index: 2, ArgumentA: "a2", ArgumentB: "b2"}))

	verdict := model.Verdict{
		Winner:    2,
		Reasoning: "cleaner rebuttals",
		ScoresA:   model.AxisScores{Logic: 6, Evidence: 5, Persuasion: 7},
		ScoresB:   model.AxisScores{Logic: 8, Evidence: 8, Persuasion: 8},
		Source:    model.VerdictParsed,
	}
	require.NoError(t, testDB.CompleteDebate(ctx, debate.ID, verdict, b.ID, 16, -16))

	// Frozen after completion.
	err = testDB.AppendRound(ctx, debate.ID, model.Round{Index: 3, ArgumentA: "late", ArgumentB: "late"})
	require.Error(t, err)

	got, err := testDB.GetDebate(ctx, debate.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DebateStatusCompleted, got.Status)
	require.Len(t, got.Rounds, 2)
	assert.Equal(t, "a2", got.Rounds[1].ArgumentA)
	require.NotNil(t, got.Verdict)
	assert.Equal(t, 2, got.Verdict.Winner)
	assert.Equal(t, model.VerdictParsed, got.Verdict.Source)
	assert.Equal(t, 8, got.Verdict.ScoresB.Logic)
	require.NotNil(t, got.WinnerID)
	assert.Equal(t, b.ID, *got.WinnerID)
	assert.Equal(t, 16, got.WinnerDelta)
	assert.Equal(t, -16, got.LoserDelta)
	require.NotNil(t, got.CompletedAt)
}

func TestFailDebatePreservesRounds(t *testing.T) {
	ctx := context.Background()
	a := newAgent(t, "FailA", 1000)
	b := newAgent(t, "FailB", 1000)

	debate, err := testDB.CreateDebate(ctx, model.Debate{Topic: "t", AgentAID: a.ID, AgentBID: b.ID})
	require.NoError(t, err)
	require.NoError(t, testDB.MarkDebateInProgress(ctx, debate.ID))
	require.NoError(t, testDB.AppendRound(ctx, debate.ID, model.Round{Index: 1, ArgumentA: "kept", ArgumentB: "kept"}))

	require.NoError(t, testDB.FailDebate(ctx, debate.ID))

	got, err := testDB.GetDebate(ctx, debate.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DebateStatusFailed, got.Status)
	require.Len(t, got.Rounds, 1)
	assert.Nil(t, got.Verdict)
	assert.Nil(t, got.WinnerID)

	// Terminal debates cannot fail again.
	require.Error(t, testDB.FailDebate(ctx, debate.ID))
}

func TestApplyDebateResult(t *testing.T) {
	ctx := context.Background()
	winner := newAgent(t, "ResultWinner", 1090)
	loser := newAgent(t, "ResultLoser", 1000)

	outcome, err := testDB.ApplyDebateResult(ctx,
		storage.ResultUpdate{AgentID: winner.ID, Delta: 16, Won: true},
		storage.ResultUpdate{AgentID: loser.ID, Delta: -16, Won: false},
	)
	require.NoError(t, err)
	assert.Equal(t, 1106, outcome.Winner.Rating)
	assert.Equal(t, model.TierSilver, outcome.Winner.Tier)
	assert.Equal(t, 984, outcome.Loser.Rating)
	require.Len(t, outcome.TierChanges, 1)
	assert.Equal(t, winner.ID, outcome.TierChanges[0].AgentID)
	assert.Equal(t, model.TierBronze, outcome.TierChanges[0].From)
	assert.Equal(t, model.TierSilver, outcome.TierChanges[0].To)

	w, err := testDB.GetAgent(ctx, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1106, w.Rating)
	assert.Equal(t, model.TierSilver, w.Tier)
	assert.Equal(t, 1, w.Wins)
	assert.Equal(t, 0, w.Losses)
	assert.Equal(t, 1, w.TotalDebates)
	require.NotNil(t, w.LastDebateAt)

	l, err := testDB.GetAgent(ctx, loser.ID)
	require.NoError(t, err)
	assert.Equal(t, 984, l.Rating)
	assert.Equal(t, 1, l.Losses)

	_, err = testDB.ApplyDebateResult(ctx,
		storage.ResultUpdate{AgentID: uuid.New(), Delta: 16, Won: true},
		storage.ResultUpdate{AgentID: loser.ID, Delta: -16, Won: false},
	)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestApplyDebateResultAccumulatesDeltas(t *testing.T) {
	ctx := context.Background()
	shared := newAgent(t, "ResultShared", 1000)
	oppA := newAgent(t, "ResultOppA", 1000)
	oppB := newAgent(t, "ResultOppB", 1000)

	// Two debates judged from the same 1000-rating snapshot of the shared
	// agent. The deltas must stack; the second write must not reset the
	// rating to its own snapshot-based absolute.
	_, err := testDB.ApplyDebateResult(ctx,
		storage.ResultUpdate{AgentID: shared.ID, Delta: 16, Won: true},
		storage.ResultUpdate{AgentID: oppA.ID, Delta: -16, Won: false},
	)
	require.NoError(t, err)

	outcome, err := testDB.ApplyDebateResult(ctx,
		storage.ResultUpdate{AgentID: shared.ID, Delta: 16, Won: true},
		storage.ResultUpdate{AgentID: oppB.ID, Delta: -16, Won: false},
	)
	require.NoError(t, err)
	assert.Equal(t, 1032, outcome.Winner.Rating)

	got, err := testDB.GetAgent(ctx, shared.ID)
	require.NoError(t, err)
	assert.Equal(t, 1032, got.Rating)
	assert.Equal(t, 2, got.Wins)
	assert.Equal(t, 2, got.TotalDebates)
}

func TestLeaderboardOrdering(t *testing.T) {
	ctx := context.Background()
	newAgent(t, "BoardLow", 905)
	high := newAgent(t, "BoardHigh", 2405)

	agents, err := testDB.Leaderboard(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, agents)
	assert.Equal(t, high.ID, agents[0].ID)
	for i := 1; i < len(agents); i++ {
		assert.GreaterOrEqual(t, agents[i-1].Rating, agents[i].Rating)
	}
}

func TestEconomyEvents(t *testing.T) {
	ctx := context.Background()
	a := newAgent(t, "EconA", 1000)
	b := newAgent(t, "EconB", 1000)

	debate, err := testDB.CreateDebate(ctx, model.Debate{Topic: "t", AgentAID: a.ID, AgentBID: b.ID})
	require.NoError(t, err)

	ownerID := a.OwnerID
	before := time.Now().UTC().Add(-time.Second)
	events := []model.EconomyEvent{
		{DebateID: debate.ID, Type: model.EconomyReward, OwnerID: &ownerID, Amount: 100},
		{DebateID: debate.ID, Type: model.EconomyPriceMove, AgentID: &a.ID, Direction: model.PriceUp},
		{DebateID: debate.ID, Type: model.EconomyPriceMove, AgentID: &b.ID, Direction: model.PriceDown},
	}
	require.NoError(t, testDB.InsertEconomyEvents(ctx, events))

	got, err := testDB.ListEconomyEvents(ctx, before, 100)
	require.NoError(t, err)

	var reward, up, down int
	for _, ev := range got {
		if ev.DebateID != debate.ID {
			continue
		}
		switch {
		case ev.Type == model.EconomyReward:
			reward++
			assert.Equal(t, 100, ev.Amount)
			assert.Equal(t, ownerID, *ev.OwnerID)
		case ev.Type == model.EconomyPriceMove && ev.Direction == model.PriceUp:
			up++
		case ev.Type == model.EconomyPriceMove && ev.Direction == model.PriceDown:
			down++
		}
	}
	assert.Equal(t, 1, reward)
	assert.Equal(t, 1, up)
	assert.Equal(t, 1, down)

	// The after cursor excludes old events.
	later, err := testDB.ListEconomyEvents(ctx, time.Now().UTC().Add(time.Minute), 100)
	require.NoError(t, err)
	assert.Empty(t, later)
}

func TestEconomyNotifyWakeup(t *testing.T) {
	ctx := context.Background()
	a := newAgent(t, "NotifyA", 1000)
	b := newAgent(t, "NotifyB", 1000)

	debate, err := testDB.CreateDebate(ctx, model.Debate{Topic: "t", AgentAID: a.ID, AgentBID: b.ID})
	require.NoError(t, err)

	require.NoError(t, testDB.Listen(ctx, storage.ChannelEconomy))

	ownerID := a.OwnerID
	require.NoError(t, testDB.InsertEconomyEvents(ctx, []model.EconomyEvent{
		{DebateID: debate.ID, Type: model.EconomyReward, OwnerID: &ownerID, Amount: 100},
	}))

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	channel, payload, err := testDB.WaitForNotification(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, storage.ChannelEconomy, channel)

	var ev model.EconomyEvent
	require.NoError(t, json.Unmarshal([]byte(payload), &ev))
	assert.Equal(t, debate.ID, ev.DebateID)
	assert.Equal(t, model.EconomyReward, ev.Type)
	assert.Equal(t, 100, ev.Amount)
}
