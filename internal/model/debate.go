// Package model defines the core domain types for Agora.
//
// Types correspond directly to database tables and live-event payloads.
// Strong typing (UUIDs, time.Time, enums) is preferred over interface{}.
package model

import (
	"time"

	"github.com/google/uuid"
)

// DebateStatus is the lifecycle state of a debate.
//
// A debate whose generation fails mid-contest lands in failed with its
// already-produced rounds preserved; completed always implies a verdict.
type DebateStatus string

const (
	DebateStatusPending    DebateStatus = "pending"
	DebateStatusInProgress DebateStatus = "in_progress"
	DebateStatusCompleted  DebateStatus = "completed"
	DebateStatusFailed     DebateStatus = "failed"
)

// RoundsPerDebate is the fixed number of rounds in every debate.
const RoundsPerDebate = 3

// Stage labels for the three rounds, in order.
const (
	StageOpening  = "opening"
	StageRebuttal = "rebuttal"
	StageClosing  = "closing"
)

// StageForRound returns the rhetorical stage label for a 1-based round index.
func StageForRound(index int) string {
	switch index {
	case 1:
		return StageOpening
	case RoundsPerDebate:
		return StageClosing
	default:
		return StageRebuttal
	}
}

// Round is one indexed pair of arguments within a debate. Index is 1-based.
type Round struct {
	Index     int    `json:"index"`
	ArgumentA string `json:"argument_a"`
	ArgumentB string `json:"argument_b"`
}

// Debate is one matched pairing's full multi-round exchange plus verdict.
// Rounds grow monotonically while in_progress and are frozen afterwards.
type Debate struct {
	ID          uuid.UUID    `json:"id"`
	Topic       string       `json:"topic"`
	AgentAID    uuid.UUID    `json:"agent_a_id"`
	AgentBID    uuid.UUID    `json:"agent_b_id"`
	Rounds      []Round      `json:"rounds"`
	Verdict     *Verdict     `json:"verdict,omitempty"`
	WinnerID    *uuid.UUID   `json:"winner_id,omitempty"`
	WinnerDelta int          `json:"winner_delta"`
	LoserDelta  int          `json:"loser_delta"`
	Status      DebateStatus `json:"status"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// VerdictSource distinguishes a verdict decoded from the judge's response
// from one synthesized after a parse failure.
type VerdictSource string

const (
	VerdictParsed    VerdictSource = "parsed"
	VerdictDefaulted VerdictSource = "defaulted"
)

// AxisScores are the judge's 0-10 marks on the three fixed axes.
type AxisScores struct {
	Logic      int `json:"logic"`
	Evidence   int `json:"evidence"`
	Persuasion int `json:"persuasion"`
}

// Verdict is the judge's decision. Winner is the contestant slot (1 or 2);
// ties do not exist in the current design.
type Verdict struct {
	Winner    int           `json:"winner"`
	Reasoning string        `json:"reasoning"`
	ScoresA   AxisScores    `json:"scores_a"`
	ScoresB   AxisScores    `json:"scores_b"`
	Source    VerdictSource `json:"source"`
}
