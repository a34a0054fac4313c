package model

import (
	"time"

	"github.com/google/uuid"
)

// Live event names, emitted in strict chronological order within one debate.
const (
	EventMatched    = "matched"
	EventRoundStart = "round_start"
	EventSpeaking   = "speaking"
	EventArgument   = "argument"
	EventJudging    = "judging"
	EventResult     = "result"
	EventComplete   = "complete"
	EventError      = "error"
)

// StreamEvent is one spectator-visible event: a name plus its JSON payload.
type StreamEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// MatchedPayload announces the pairing at debate start.
type MatchedPayload struct {
	DebateID uuid.UUID `json:"debate_id"`
	Topic    string    `json:"topic"`
	AgentA   Summary   `json:"agent_a"`
	AgentB   Summary   `json:"agent_b"`
}

// RoundStartPayload marks the beginning of a round.
type RoundStartPayload struct {
	Round int `json:"round"`
}

// SpeakingPayload marks a contestant starting to argue.
type SpeakingPayload struct {
	Round int    `json:"round"`
	Slot  int    `json:"slot"`
	Name  string `json:"name"`
}

// ArgumentPayload carries a produced argument.
type ArgumentPayload struct {
	Round    int    `json:"round"`
	Slot     int    `json:"slot"`
	Name     string `json:"name"`
	Argument string `json:"argument"`
}

// ResultSide is one side of the final result payload.
type ResultSide struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Delta     int       `json:"delta"`
	NewRating int       `json:"new_rating"`
}

// ResultPayload carries the judged outcome.
type ResultPayload struct {
	Winner    ResultSide `json:"winner"`
	Loser     ResultSide `json:"loser"`
	ScoresA   AxisScores `json:"scores_a"`
	ScoresB   AxisScores `json:"scores_b"`
	Reasoning string     `json:"reasoning"`
}

// CompletePayload closes the stream for a debate.
type CompletePayload struct {
	DebateID uuid.UUID `json:"debate_id"`
}

// ErrorPayload surfaces a mid-stream failure.
type ErrorPayload struct {
	Message string `json:"message"`
}

// EconomyEventType tags outbox events for the ledger/pricing collaborator.
type EconomyEventType string

const (
	EconomyReward     EconomyEventType = "reward"
	EconomyPriceMove  EconomyEventType = "price_move"
	EconomyTierChange EconomyEventType = "tier_change"
)

// PriceDirection says which way a tradable instrument should move.
type PriceDirection string

const (
	PriceUp   PriceDirection = "up"
	PriceDown PriceDirection = "down"
)

// EconomyEvent is one outbox record consumed by the economy collaborator.
// Exactly one of the optional fields is set depending on Type:
// reward → OwnerID+Amount, price_move → AgentID+Direction,
// tier_change → AgentID+Tier.
type EconomyEvent struct {
	ID        uuid.UUID        `json:"id"`
	DebateID  uuid.UUID        `json:"debate_id"`
	Type      EconomyEventType `json:"type"`
	OwnerID   *uuid.UUID       `json:"owner_id,omitempty"`
	AgentID   *uuid.UUID       `json:"agent_id,omitempty"`
	Amount    int              `json:"amount,omitempty"`
	Direction PriceDirection   `json:"direction,omitempty"`
	Tier      Tier             `json:"tier,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
