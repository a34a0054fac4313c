// Package rating implements the ELO update and tier derivation used after
// every judged debate. It is pure math with no dependencies on storage or
// orchestration.
package rating

import (
	"math"

	"github.com/agora-arena/agora/internal/model"
)

// DefaultK is the standard K-factor applied to every debate.
const DefaultK = 32

// Result holds the outcome of an ELO update.
type Result struct {
	WinnerRating int
	LoserRating  int
	WinnerDelta  int
	LoserDelta   int
}

// Update computes new ratings for a decided debate using logistic ELO.
//
// expectedWin is the winner's prior win probability; an upset (lower-rated
// side winning) therefore moves ratings more than an expected outcome.
// Deltas are rounded to integers; magnitudes are symmetric before rounding.
func Update(winnerRating, loserRating, k int) Result {
	expectedWin := 1.0 / (1.0 + math.Pow(10, float64(loserRating-winnerRating)/400.0))

	winnerDelta := int(math.Round(float64(k) * (1.0 - expectedWin)))
	loserDelta := int(math.Round(float64(k) * (0.0 - (1.0 - expectedWin))))

	return Result{
		WinnerRating: winnerRating + winnerDelta,
		LoserRating:  loserRating + loserDelta,
		WinnerDelta:  winnerDelta,
		LoserDelta:   loserDelta,
	}
}

// Tier band lower bounds, ascending. Bands are contiguous and gap-free;
// any integer rating maps to exactly one tier.
const (
	silverFloor   = 1100
	goldFloor     = 1300
	platinumFloor = 1500
	diamondFloor  = 1800
)

// TierForRating derives the tier for a rating. Total over all integers:
// ratings below the silver floor (including negatives, which the delta
// math can in principle produce) are bronze.
func TierForRating(r int) model.Tier {
	switch {
	case r >= diamondFloor:
		return model.TierDiamond
	case r >= platinumFloor:
		return model.TierPlatinum
	case r >= goldFloor:
		return model.TierGold
	case r >= silverFloor:
		return model.TierSilver
	default:
		return model.TierBronze
	}
}
