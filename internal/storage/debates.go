package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/agora-arena/agora/internal/model"
)

// CreateDebate inserts a new debate in pending status with no rounds.
func (db *DB) CreateDebate(ctx context.Context, debate model.Debate) (model.Debate, error) {
	if debate.ID == uuid.Nil {
		debate.ID = uuid.New()
	}
	if debate.Status == "" {
		debate.Status = model.DebateStatusPending
	}
	if debate.StartedAt.IsZero() {
		debate.StartedAt = time.Now().UTC()
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO debates (id, topic, agent_a_id, agent_b_id, rounds, status, started_at)
		 VALUES ($1, $2, $3, $4, '[]'::jsonb, $5, $6)`,
		debate.ID, debate.Topic, debate.AgentAID, debate.AgentBID,
		string(debate.Status), debate.StartedAt,
	)
	if err != nil {
		return model.Debate{}, fmt.Errorf("storage: create debate: %w", err)
	}
	return debate, nil
}

// MarkDebateInProgress transitions a pending debate to in_progress.
func (db *DB) MarkDebateInProgress(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE debates SET status = $1 WHERE id = $2 AND status = $3`,
		string(model.DebateStatusInProgress), id, string(model.DebateStatusPending),
	)
	if err != nil {
		return fmt.Errorf("storage: mark debate in_progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: debate %s not pending: %w", id, ErrNotFound)
	}
	return nil
}

// AppendRound appends one completed round to an in_progress debate.
// Rounds only ever grow while in_progress; completed and failed debates
// are frozen by the status guard.
func (db *DB) AppendRound(ctx context.Context, id uuid.UUID, round model.Round) error {
	payload, err := json.Marshal(round)
	if err != nil {
		return fmt.Errorf("storage: marshal round: %w", err)
	}
	tag, err := db.pool.Exec(ctx,
		`UPDATE debates SET rounds = rounds || $1::jsonb WHERE id = $2 AND status = $3`,
		string(payload), id, string(model.DebateStatusInProgress),
	)
	if err != nil {
		return fmt.Errorf("storage: append round: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: debate %s not in_progress: %w", id, ErrNotFound)
	}
	return nil
}

// CompleteDebate records the verdict and rating deltas and freezes the debate.
func (db *DB) CompleteDebate(ctx context.Context, id uuid.UUID, verdict model.Verdict, winnerID uuid.UUID, winnerDelta, loserDelta int) error {
	scoresA, err := json.Marshal(verdict.ScoresA)
	if err != nil {
		return fmt.Errorf("storage: marshal scores: %w", err)
	}
	scoresB, err := json.Marshal(verdict.ScoresB)
	if err != nil {
		return fmt.Errorf("storage: marshal scores: %w", err)
	}
	tag, err := db.pool.Exec(ctx,
		`UPDATE debates
		 SET status = $1, winner_id = $2, winner_slot = $3, reasoning = $4,
		     verdict_source = $5, scores_a = $6::jsonb, scores_b = $7::jsonb,
		     winner_delta = $8, loser_delta = $9, completed_at = $10
		 WHERE id = $11 AND status = $12`,
		string(model.DebateStatusCompleted), winnerID, verdict.Winner, verdict.Reasoning,
		string(verdict.Source), string(scoresA), string(scoresB),
		winnerDelta, loserDelta, time.Now().UTC(),
		id, string(model.DebateStatusInProgress),
	)
	if err != nil {
		return fmt.Errorf("storage: complete debate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: debate %s not in_progress: %w", id, ErrNotFound)
	}
	return nil
}

// FailDebate moves a debate to the failed terminal state. Already-produced
// rounds stay on the record; no verdict or deltas are written.
func (db *DB) FailDebate(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE debates SET status = $1, completed_at = $2
		 WHERE id = $3 AND status IN ($4, $5)`,
		string(model.DebateStatusFailed), time.Now().UTC(), id,
		string(model.DebateStatusPending), string(model.DebateStatusInProgress),
	)
	if err != nil {
		return fmt.Errorf("storage: fail debate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: debate %s not failable: %w", id, ErrNotFound)
	}
	return nil
}

// GetDebate retrieves a debate with its rounds and verdict, if judged.
func (db *DB) GetDebate(ctx context.Context, id uuid.UUID) (model.Debate, error) {
	var (
		d             model.Debate
		roundsRaw     []byte
		winnerSlot    *int
		reasoning     *string
		verdictSource *string
		scoresARaw    []byte
		scoresBRaw    []byte
	)
	err := db.pool.QueryRow(ctx,
		`SELECT id, topic, agent_a_id, agent_b_id, rounds, status,
		        winner_id, winner_slot, reasoning, verdict_source, scores_a, scores_b,
		        COALESCE(winner_delta, 0), COALESCE(loser_delta, 0),
		        started_at, completed_at
		 FROM debates WHERE id = $1`, id,
	).Scan(
		&d.ID, &d.Topic, &d.AgentAID, &d.AgentBID, &roundsRaw, &d.Status,
		&d.WinnerID, &winnerSlot, &reasoning, &verdictSource, &scoresARaw, &scoresBRaw,
		&d.WinnerDelta, &d.LoserDelta,
		&d.StartedAt, &d.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Debate{}, fmt.Errorf("storage: debate %s: %w", id, ErrNotFound)
		}
		return model.Debate{}, fmt.Errorf("storage: get debate: %w", err)
	}

	if err := json.Unmarshal(roundsRaw, &d.Rounds); err != nil {
		return model.Debate{}, fmt.Errorf("storage: decode rounds: %w", err)
	}
	if winnerSlot != nil {
		v := model.Verdict{Winner: *winnerSlot}
		if reasoning != nil {
			v.Reasoning = *reasoning
		}
		if verdictSource != nil {
			v.Source = model.VerdictSource(*verdictSource)
		}
		if scoresARaw != nil {
			if err := json.Unmarshal(scoresARaw, &v.ScoresA); err != nil {
				return model.Debate{}, fmt.Errorf("storage: decode scores: %w", err)
			}
		}
		if scoresBRaw != nil {
			if err := json.Unmarshal(scoresBRaw, &v.ScoresB); err != nil {
				return model.Debate{}, fmt.Errorf("storage: decode scores: %w", err)
			}
		}
		d.Verdict = &v
	}
	return d, nil
}

// ListDebates returns recent debates, newest first, without round bodies.
func (db *DB) ListDebates(ctx context.Context, limit, offset int) ([]model.Debate, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, topic, agent_a_id, agent_b_id, status, winner_id,
		        COALESCE(winner_delta, 0), COALESCE(loser_delta, 0),
		        started_at, completed_at
		 FROM debates ORDER BY started_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list debates: %w", err)
	}
	defer rows.Close()

	var debates []model.Debate
	for rows.Next() {
		var d model.Debate
		if err := rows.Scan(
			&d.ID, &d.Topic, &d.AgentAID, &d.AgentBID, &d.Status, &d.WinnerID,
			&d.WinnerDelta, &d.LoserDelta, &d.StartedAt, &d.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan debate: %w", err)
		}
		debates = append(debates, d)
	}
	return debates, rows.Err()
}
