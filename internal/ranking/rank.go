// Package ranking orders enriched venue candidates.
package ranking

import (
	"fmt"
	"sort"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/logging"
)

// EtaWeight is the score penalty per minute of travel.
const EtaWeight = 0.01

// Score is the rating (0 when unknown) minus the weighted ETA (0 when unknown).
func Score(v domain.VenueCandidate) float64 {
	var rating, eta float64
	if v.Rating != nil {
		rating = *v.Rating
	}
	if v.Travel != nil {
		eta = v.Travel.EtaMinutes
	}
	return rating - eta*EtaWeight
}

// Rank sorts by Score descending, keeping input order among equal scores.
// If ranking fails the list comes back unranked with its scores attached.
func Rank(list []domain.VenueCandidate) (out []domain.RankedRecommendation) {
	unranked := make([]domain.RankedRecommendation, len(list))
	for i, v := range list {
		unranked[i] = domain.RankedRecommendation{VenueCandidate: v, FinalScore: Score(v)}
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Warn().Str("panic", fmt.Sprint(r)).Msg("ranking failed, returning unranked list")
			out = unranked
		}
	}()

	ranked := make([]domain.RankedRecommendation, len(unranked))
	copy(ranked, unranked)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})
	return ranked
}

// Top returns at most n entries.
func Top(list []domain.RankedRecommendation, n int) []domain.RankedRecommendation {
	if n <= 0 || len(list) <= n {
		return list
	}
	return list[:n]
}
