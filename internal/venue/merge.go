package venue

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/i474232898/venue-context-aggregation/internal/cache"
	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/logging"
)

// Merge combines both branches keyed by venue id. Personalized entries that
// match a base venue overlay their score and reasons; the rest are appended.
// The result keeps insertion order.
func Merge(base, personalized []domain.VenueCandidate) []domain.VenueCandidate {
	index := make(map[string]int, len(base)+len(personalized))
	out := make([]domain.VenueCandidate, 0, len(base)+len(personalized))

	for _, v := range base {
		if _, seen := index[v.ID]; seen {
			continue
		}
		index[v.ID] = len(out)
		out = append(out, v)
	}

	for _, p := range personalized {
		i, seen := index[p.ID]
		if !seen {
			index[p.ID] = len(out)
			out = append(out, p)
			continue
		}
		if p.Score != nil {
			out[i].Score = p.Score
		}
		if len(p.Reasons) > 0 {
			out[i].Reasons = p.Reasons
		}
	}
	return out
}

// DefaultRatingConcurrency caps concurrent detail lookups.
const DefaultRatingConcurrency = 10

// RatingLookup fetches the rating of a single venue.
type RatingLookup interface {
	Rating(ctx context.Context, id string) (*float64, error)
}

// EnrichRatings fills missing ratings for up to topN unrated candidates,
// one lookup per unique id with at most maxConcurrent in flight. A failed
// lookup leaves its candidate unrated.
func EnrichRatings(ctx context.Context, list []domain.VenueCandidate, topN int, lookup RatingLookup, maxConcurrent int) []domain.VenueCandidate {
	if lookup == nil || topN <= 0 || len(list) == 0 {
		return list
	}

	ids := make([]string, 0, topN)
	seen := make(map[string]bool)
	picked := 0
	for _, v := range list {
		if picked >= topN {
			break
		}
		if v.ID == "" || v.Rating != nil {
			continue
		}
		picked++
		if !seen[v.ID] {
			seen[v.ID] = true
			ids = append(ids, v.ID)
		}
	}
	if len(ids) == 0 {
		return list
	}

	if maxConcurrent <= 0 {
		maxConcurrent = DefaultRatingConcurrency
	}
	ratings := make([]*float64, len(ids))

	var g errgroup.Group
	g.SetLimit(min(len(ids), maxConcurrent))
	for i, id := range ids {
		g.Go(func() error {
			r, err := lookup.Rating(ctx, id)
			if err != nil {
				logging.Ctx(ctx).Debug().Err(err).Str("venue_id", id).Msg("rating lookup failed")
				return nil
			}
			ratings[i] = r
			return nil
		})
	}
	_ = g.Wait()

	byID := make(map[string]float64, len(ids))
	for i, id := range ids {
		if ratings[i] != nil {
			byID[id] = *ratings[i]
		}
	}
	if len(byID) == 0 {
		return list
	}

	out := make([]domain.VenueCandidate, len(list))
	for i, v := range list {
		if r, ok := byID[v.ID]; ok && v.Rating == nil {
			v.Rating = domain.Float(r)
		}
		out[i] = v
	}
	return out
}

type cachedRatings struct {
	lookup RatingLookup
	ns     *cache.Namespace
}

// CachedRatings wraps lookup with a read-through cache keyed by venue id.
// Unrated venues are cached too.
func CachedRatings(lookup RatingLookup, ns *cache.Namespace) RatingLookup {
	if lookup == nil {
		return nil
	}
	return &cachedRatings{lookup: lookup, ns: ns}
}

func (c *cachedRatings) Rating(ctx context.Context, id string) (*float64, error) {
	return cache.Fetch(ctx, c.ns, "detail|"+id, func(ctx context.Context) (*float64, error) {
		return c.lookup.Rating(ctx, id)
	})
}
