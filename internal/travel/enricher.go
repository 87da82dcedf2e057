// Package travel annotates venue candidates with distance and ETA from the
// request origin.
package travel

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/i474232898/venue-context-aggregation/internal/cache"
	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/logging"
	"github.com/i474232898/venue-context-aggregation/internal/metrics"
)

const (
	// CacheTTL applies to matrix responses.
	CacheTTL = 60 * time.Second

	// AssumedSpeedKmh converts distances to ETAs when no provider timed the trip.
	AssumedSpeedKmh = 40.0
	// KmPerDegree is the planar degree-delta approximation factor.
	KmPerDegree = 111.0
)

// MatrixElement is one origin/destination cell of a travel matrix.
type MatrixElement struct {
	OK              bool
	DistanceMeters  float64
	DurationSeconds *float64
}

// MatrixProvider computes travel from one origin to many destinations in a
// single call. Elements are returned in destination order.
type MatrixProvider interface {
	Name() string
	Matrix(ctx context.Context, origin domain.Location, destinations []domain.Location) ([]MatrixElement, error)
}

// Enricher runs the primary/secondary/estimate cascade.
type Enricher struct {
	primary   MatrixProvider
	secondary MatrixProvider
	cache     *cache.Namespace
}

// NewEnricher builds an Enricher. Either provider may be nil.
func NewEnricher(primary, secondary MatrixProvider, ns *cache.Namespace) *Enricher {
	return &Enricher{primary: primary, secondary: secondary, cache: ns}
}

// Enrich returns a copy of candidates, same length and order, with Travel set
// wherever a provider row or an estimate is available.
func (e *Enricher) Enrich(ctx context.Context, origin *domain.Location, candidates []domain.VenueCandidate) []domain.VenueCandidate {
	out := make([]domain.VenueCandidate, len(candidates))
	copy(out, candidates)
	if origin == nil || !origin.Valid() || len(out) == 0 {
		return out
	}

	idx := make([]int, 0, len(out))
	dests := make([]domain.Location, 0, len(out))
	for i, c := range out {
		if c.Geocode != nil && c.Geocode.Valid() {
			idx = append(idx, i)
			dests = append(dests, *c.Geocode)
		}
	}

	if len(dests) > 0 {
		done := false
		if e.primary != nil {
			done = e.apply(ctx, e.primary, domain.TravelPrimary, *origin, dests, idx, out)
		}
		if !done && e.secondary != nil {
			e.apply(ctx, e.secondary, domain.TravelSecondary, *origin, dests, idx, out)
		}
	}

	for i := range out {
		if out[i].Travel != nil {
			continue
		}
		switch c := out[i]; {
		case c.Geocode != nil && c.Geocode.Valid():
			km := EstimateKm(*origin, *c.Geocode)
			out[i].Travel = estimate(km)
		case c.DistanceMeters != nil && *c.DistanceMeters > 0 && !math.IsInf(*c.DistanceMeters, 0):
			out[i].Travel = estimate(*c.DistanceMeters / 1000)
		}
	}
	return out
}

// apply issues one batched request and patches accepted rows. It reports
// whether the provider answered.
func (e *Enricher) apply(ctx context.Context, p MatrixProvider, source domain.TravelSource, origin domain.Location, dests []domain.Location, idx []int, out []domain.VenueCandidate) bool {
	rows, err := cache.Fetch(ctx, e.cache, matrixKey(p.Name(), origin, dests), func(ctx context.Context) ([]MatrixElement, error) {
		return p.Matrix(ctx, origin, dests)
	})
	if err != nil {
		metrics.RecordDegraded("travel")
		logging.Ctx(ctx).Warn().Err(err).Str("signal", "travel").Str("provider", p.Name()).Str("kind", domain.Classify(err)).Msg("signal degraded")
		return false
	}

	for k, i := range idx {
		if k >= len(rows) {
			break
		}
		row := rows[k]
		if !row.OK || row.DistanceMeters <= 0 {
			continue
		}
		km := row.DistanceMeters / 1000
		eta := km / AssumedSpeedKmh * 60
		if row.DurationSeconds != nil {
			eta = *row.DurationSeconds / 60
		}
		out[i].Travel = &domain.TravelInfo{DistanceKm: km, EtaMinutes: eta, Source: source}
	}
	return true
}

// EstimateKm is the planar degree-delta distance between two points.
func EstimateKm(a, b domain.Location) float64 {
	dLat := b.Lat - a.Lat
	dLng := b.Lng - a.Lng
	return math.Sqrt(dLat*dLat+dLng*dLng) * KmPerDegree
}

// EstimateEtaMinutes converts a distance to minutes at the assumed speed.
func EstimateEtaMinutes(km float64) float64 {
	return km / AssumedSpeedKmh * 60
}

func estimate(km float64) *domain.TravelInfo {
	return &domain.TravelInfo{
		DistanceKm: km,
		EtaMinutes: EstimateEtaMinutes(km),
		Source:     domain.TravelEstimate,
		Estimated:  true,
	}
}

func matrixKey(provider string, origin domain.Location, dests []domain.Location) string {
	var b strings.Builder
	b.WriteString(provider)
	b.WriteByte('|')
	b.WriteString(origin.Key(5))
	for _, d := range dests {
		b.WriteByte('|')
		b.WriteString(d.Key(5))
	}
	return b.String()
}
