// Package matchmaker selects two contestants from a candidate pool.
//
// The matcher is deliberately greedy: it scans pairs in sample order and
// takes the first acceptable one rather than searching for a globally fair
// pairing. The candidate sample itself comes from storage (random order),
// which is what makes repeated matches vary.
package matchmaker

import (
	"context"
	"fmt"

	"github.com/agora-arena/agora/internal/model"
)

// SampleSize caps the candidate pool so the pairwise scan stays cheap.
const SampleSize = 20

// RatingWindow is the preferred maximum rating gap between contestants.
const RatingWindow = 200

// CandidateSource supplies a bounded random sample of agents.
type CandidateSource interface {
	SampleAgents(ctx context.Context, limit int) ([]model.Agent, error)
}

// ErrNoPair is returned when fewer than two candidates exist.
var ErrNoPair = fmt.Errorf("matchmaker: fewer than two candidates")

// Matchmaker picks debate pairings from an agent store.
type Matchmaker struct {
	source CandidateSource
}

// New creates a Matchmaker over the given candidate source.
func New(source CandidateSource) *Matchmaker {
	return &Matchmaker{source: source}
}

// Match draws a sample and returns two contestants. Read-only.
func (m *Matchmaker) Match(ctx context.Context) (model.Agent, model.Agent, error) {
	candidates, err := m.source.SampleAgents(ctx, SampleSize)
	if err != nil {
		return model.Agent{}, model.Agent{}, fmt.Errorf("matchmaker: sample candidates: %w", err)
	}
	return Pair(candidates)
}

// Pair scans candidates in order and returns the first pair satisfying, in
// preference order:
//
//  1. rating gap ≤ RatingWindow and different owners
//  2. different owners
//  3. any two candidates (all share one owner)
//
// Ties are resolved by sample order, not an explicit tie-break rule.
func Pair(candidates []model.Agent) (model.Agent, model.Agent, error) {
	if len(candidates) < 2 {
		return model.Agent{}, model.Agent{}, ErrNoPair
	}

	var fallbackA, fallbackB *model.Agent
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			a, b := &candidates[i], &candidates[j]
			if a.OwnerID == b.OwnerID {
				continue
			}
			if abs(a.Rating-b.Rating) <= RatingWindow {
				return *a, *b, nil
			}
			if fallbackA == nil {
				fallbackA, fallbackB = a, b
			}
		}
	}
	if fallbackA != nil {
		return *fallbackA, *fallbackB, nil
	}
	// Every candidate shares one owner; match the first two anyway.
	return candidates[0], candidates[1], nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
