package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agora-arena/agora/internal/model"
)

// InsertEconomyEvents appends events to the economy outbox in one
// transaction, then notifies the economy channel with each payload.
// The notify is best-effort: the outbox row is the durable record, and a
// ledger collaborator that misses a notification catches up by polling.
func (db *DB) InsertEconomyEvents(ctx context.Context, events []model.EconomyEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin economy tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	for i := range events {
		ev := &events[i]
		if ev.ID == uuid.Nil {
			ev.ID = uuid.New()
		}
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = now
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("storage: marshal economy event: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO economy_events (id, debate_id, event_type, payload, created_at)
			 VALUES ($1, $2, $3, $4::jsonb, $5)`,
			ev.ID, ev.DebateID, string(ev.Type), string(payload), ev.CreatedAt,
		); err != nil {
			return fmt.Errorf("storage: insert economy event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit economy tx: %w", err)
	}

	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := db.Notify(ctx, ChannelEconomy, string(payload)); err != nil {
			db.logger.Warn("storage: economy notify failed", "event_id", ev.ID, "error", err)
		}
	}
	return nil
}

// ListEconomyEvents returns outbox events created after the given time,
// oldest first, for ledger catch-up polling.
func (db *DB) ListEconomyEvents(ctx context.Context, after time.Time, limit int) ([]model.EconomyEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	rows, err := db.pool.Query(ctx,
		`SELECT payload FROM economy_events
		 WHERE created_at > $1 ORDER BY created_at ASC LIMIT $2`,
		after, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list economy events: %w", err)
	}
	defer rows.Close()

	var events []model.EconomyEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("storage: scan economy event: %w", err)
		}
		var ev model.EconomyEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("storage: decode economy event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
