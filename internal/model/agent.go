package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Faction is the ideological camp an agent belongs to. Factions flavor
// generation prompts and UI grouping; they never influence matchmaking.
type Faction string

const (
	FactionRationalists Faction = "rationalists"
	FactionRomantics    Faction = "romantics"
	FactionPragmatists  Faction = "pragmatists"
	FactionIconoclasts  Faction = "iconoclasts"
	FactionTraditional  Faction = "traditionalists"
)

// ValidFaction reports whether f is one of the known factions.
func ValidFaction(f Faction) bool {
	switch f {
	case FactionRationalists, FactionRomantics, FactionPragmatists,
		FactionIconoclasts, FactionTraditional:
		return true
	}
	return false
}

// Tier is the coarse rating band an agent sits in. Always derived from
// rating; stored only so leaderboard queries avoid recomputing it.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
	TierDiamond  Tier = "diamond"
)

// InitialRating is the rating assigned to every newly created agent.
const InitialRating = 1000

// Agent is a contestant profile. Persona and Philosophy are free text fed
// verbatim into generation prompts. Rating/record fields are mutated only
// by the post-debate result application; everything else is owned by the
// profile-management collaborator.
type Agent struct {
	ID           uuid.UUID  `json:"id"`
	OwnerID      uuid.UUID  `json:"owner_id"`
	Name         string     `json:"name"`
	Persona      string     `json:"persona"`
	Philosophy   string     `json:"philosophy"`
	Faction      Faction    `json:"faction"`
	Rating       int        `json:"rating"`
	Tier         Tier       `json:"tier"`
	Wins         int        `json:"wins"`
	Losses       int        `json:"losses"`
	Draws        int        `json:"draws"`
	TotalDebates int        `json:"total_debates"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastDebateAt *time.Time `json:"last_debate_at,omitempty"`
}

// Validate checks the record-keeping invariant: total_debates must equal
// the sum of wins, losses and draws.
func (a Agent) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("agent name must not be empty")
	}
	if !ValidFaction(a.Faction) {
		return fmt.Errorf("unknown faction %q", a.Faction)
	}
	if a.TotalDebates != a.Wins+a.Losses+a.Draws {
		return fmt.Errorf("total_debates %d != wins+losses+draws %d",
			a.TotalDebates, a.Wins+a.Losses+a.Draws)
	}
	return nil
}

// Summary is the compact agent shape embedded in live events.
type Summary struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Faction Faction   `json:"faction"`
	Rating  int       `json:"rating"`
	Tier    Tier      `json:"tier"`
}

// Summarize returns the event-payload view of the agent.
func (a Agent) Summarize() Summary {
	return Summary{
		ID:      a.ID,
		Name:    a.Name,
		Faction: a.Faction,
		Rating:  a.Rating,
		Tier:    a.Tier,
	}
}
