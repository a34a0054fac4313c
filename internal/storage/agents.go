package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/agora-arena/agora/internal/model"
	"github.com/agora-arena/agora/internal/rating"
)

const agentColumns = `id, owner_id, name, persona, philosophy, faction, rating, tier,
	wins, losses, draws, total_debates, created_at, updated_at, last_debate_at`

func scanAgent(row pgx.Row) (model.Agent, error) {
	var a model.Agent
	err := row.Scan(
		&a.ID, &a.OwnerID, &a.Name, &a.Persona, &a.Philosophy, &a.Faction,
		&a.Rating, &a.Tier, &a.Wins, &a.Losses, &a.Draws, &a.TotalDebates,
		&a.CreatedAt, &a.UpdatedAt, &a.LastDebateAt,
	)
	return a, err
}

// CreateAgent inserts a new agent profile.
func (db *DB) CreateAgent(ctx context.Context, agent model.Agent) (model.Agent, error) {
	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}
	now := time.Now().UTC()
	agent.CreatedAt = now
	agent.UpdatedAt = now

	_, err := db.pool.Exec(ctx,
		`INSERT INTO agents (id, owner_id, name, persona, philosophy, faction, rating, tier,
		                     wins, losses, draws, total_debates, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		agent.ID, agent.OwnerID, agent.Name, agent.Persona, agent.Philosophy,
		string(agent.Faction), agent.Rating, string(agent.Tier),
		agent.Wins, agent.Losses, agent.Draws, agent.TotalDebates,
		agent.CreatedAt, agent.UpdatedAt,
	)
	if err != nil {
		return model.Agent{}, fmt.Errorf("storage: create agent: %w", err)
	}
	return agent, nil
}

// GetAgent retrieves an agent by id.
func (db *DB) GetAgent(ctx context.Context, id uuid.UUID) (model.Agent, error) {
	a, err := scanAgent(db.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Agent{}, fmt.Errorf("storage: agent %s: %w", id, ErrNotFound)
		}
		return model.Agent{}, fmt.Errorf("storage: get agent: %w", err)
	}
	return a, nil
}

// ListAgents returns agents with pagination, newest first.
// limit is clamped to [1, 500] with a default of 100; offset must be non-negative.
func (db *DB) ListAgents(ctx context.Context, limit, offset int) ([]model.Agent, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+agentColumns+` FROM agents ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list agents: %w", err)
	}
	defer rows.Close()
	return collectAgents(rows)
}

// Leaderboard returns the top agents by rating.
func (db *DB) Leaderboard(ctx context.Context, limit int) ([]model.Agent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+agentColumns+` FROM agents ORDER BY rating DESC, total_debates DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: leaderboard: %w", err)
	}
	defer rows.Close()
	return collectAgents(rows)
}

// SampleAgents returns a bounded random sample of agents for matchmaking.
func (db *DB) SampleAgents(ctx context.Context, limit int) ([]model.Agent, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+agentColumns+` FROM agents ORDER BY random() LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: sample agents: %w", err)
	}
	defer rows.Close()
	return collectAgents(rows)
}

func collectAgents(rows pgx.Rows) ([]model.Agent, error) {
	var agents []model.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// ResultUpdate carries one contestant's rating movement from a judged
// debate. Delta is applied on top of whatever rating the locked row holds
// at commit time, not the snapshot the debate started from, so debates
// finishing concurrently with an agent in common never clobber each other.
type ResultUpdate struct {
	AgentID uuid.UUID
	Delta   int
	Won     bool
}

// AppliedResult reports the state a contestant's row ended up in.
type AppliedResult struct {
	AgentID uuid.UUID
	Rating  int
	Tier    model.Tier
}

// TierChange reports an agent whose derived tier moved band.
type TierChange struct {
	AgentID uuid.UUID
	From    model.Tier
	To      model.Tier
}

// DebateOutcome is the committed result of ApplyDebateResult.
type DebateOutcome struct {
	Winner      AppliedResult
	Loser       AppliedResult
	TierChanges []TierChange
}

// ApplyDebateResult applies both contestants' rating deltas and win/loss
// record in one transaction. Rows are locked FOR UPDATE in id order so two
// debates finishing concurrently with an agent in common serialize instead
// of deadlocking; the new rating and tier are derived from the locked row.
func (db *DB) ApplyDebateResult(ctx context.Context, winner, loser ResultUpdate) (DebateOutcome, error) {
	var out DebateOutcome
	err := WithRetry(ctx, 3, 50*time.Millisecond, func() error {
		out = DebateOutcome{}

		tx, err := db.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("storage: begin result tx: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		// Lock both rows in a deterministic order and read the rating the
		// delta lands on.
		first, second := winner, loser
		if second.AgentID.String() < first.AgentID.String() {
			first, second = second, first
		}
		type lockedRow struct {
			rating int
			tier   model.Tier
		}
		prior := make(map[uuid.UUID]lockedRow, 2)
		for _, u := range []ResultUpdate{first, second} {
			var row lockedRow
			err := tx.QueryRow(ctx,
				`SELECT rating, tier FROM agents WHERE id = $1 FOR UPDATE`, u.AgentID,
			).Scan(&row.rating, &row.tier)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("storage: agent %s: %w", u.AgentID, ErrNotFound)
				}
				return fmt.Errorf("storage: lock agent %s: %w", u.AgentID, err)
			}
			prior[u.AgentID] = row
		}

		now := time.Now().UTC()
		apply := func(u ResultUpdate) (AppliedResult, error) {
			row := prior[u.AgentID]
			newRating := row.rating + u.Delta
			newTier := rating.TierForRating(newRating)
			winInc, lossInc := 0, 1
			if u.Won {
				winInc, lossInc = 1, 0
			}
			if _, err := tx.Exec(ctx,
				`UPDATE agents
				 SET rating = $1, tier = $2,
				     wins = wins + $3, losses = losses + $4,
				     total_debates = total_debates + 1,
				     last_debate_at = $5, updated_at = $5
				 WHERE id = $6`,
				newRating, string(newTier), winInc, lossInc, now, u.AgentID,
			); err != nil {
				return AppliedResult{}, fmt.Errorf("storage: update agent %s: %w", u.AgentID, err)
			}
			if row.tier != newTier {
				out.TierChanges = append(out.TierChanges, TierChange{AgentID: u.AgentID, From: row.tier, To: newTier})
			}
			return AppliedResult{AgentID: u.AgentID, Rating: newRating, Tier: newTier}, nil
		}
		if out.Winner, err = apply(winner); err != nil {
			return err
		}
		if out.Loser, err = apply(loser); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("storage: commit result tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return DebateOutcome{}, err
	}
	return out, nil
}
