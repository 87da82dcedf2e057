// Package pipeline composes the signal services into the three request
// flows: ranked recommendations, the context bundle and smart suggestions.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/i474232898/venue-context-aggregation/internal/calendar"
	"github.com/i474232898/venue-context-aggregation/internal/clock"
	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/geo"
	"github.com/i474232898/venue-context-aggregation/internal/logging"
	"github.com/i474232898/venue-context-aggregation/internal/metrics"
	"github.com/i474232898/venue-context-aggregation/internal/timezone"
	"github.com/i474232898/venue-context-aggregation/internal/traffic"
	"github.com/i474232898/venue-context-aggregation/internal/travel"
	"github.com/i474232898/venue-context-aggregation/internal/venue"
	"github.com/i474232898/venue-context-aggregation/internal/weather"
)

const (
	DefaultQuery        = "sights"
	DefaultLimit        = 15
	DefaultContextQuery = "coffee"
	DefaultContextLimit = 10
	DefaultSuggestLimit = 5
	DefaultRatingTopN   = 10
)

// Options tune request defaults. Zero values fall back to the defaults above.
type Options struct {
	Query             string
	Limit             int
	ContextQuery      string
	ContextLimit      int
	SuggestLimit      int
	RatingTopN        int
	RatingConcurrency int
}

func (o Options) withDefaults() Options {
	if o.Query == "" {
		o.Query = DefaultQuery
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.ContextQuery == "" {
		o.ContextQuery = DefaultContextQuery
	}
	if o.ContextLimit <= 0 {
		o.ContextLimit = DefaultContextLimit
	}
	if o.SuggestLimit <= 0 {
		o.SuggestLimit = DefaultSuggestLimit
	}
	if o.RatingTopN <= 0 {
		o.RatingTopN = DefaultRatingTopN
	}
	if o.RatingConcurrency <= 0 {
		o.RatingConcurrency = venue.DefaultRatingConcurrency
	}
	return o
}

// Deps are the collaborators of a Service. Only Venues is required; every
// other signal degrades to empty when nil.
type Deps struct {
	Geo      *geo.Resolver
	Venues   *venue.Gateway
	Ratings  venue.RatingLookup
	Travel   *travel.Enricher
	Weather  *weather.Service
	Timezone *timezone.Service
	Traffic  *traffic.Service
	Calendar *calendar.Service
	Maps     MapRenderer
	Clock    clock.Clock
}

// MapRenderer builds a static map image URL for a set of venues.
type MapRenderer interface {
	StaticMapURL(center domain.Location, pins []domain.Location) string
}

type Service struct {
	deps Deps
	opts Options
}

func New(deps Deps, opts Options) *Service {
	if deps.Clock == nil {
		deps.Clock = clock.NewSystem()
	}
	if deps.Timezone == nil {
		deps.Timezone = timezone.NewService(nil, nil, deps.Clock)
	}
	return &Service{deps: deps, opts: opts.withDefaults()}
}

// LocationView is the resolved identity together with the request coordinates.
type LocationView struct {
	domain.GeoIdentity
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func validate(loc *domain.Location) error {
	if loc == nil {
		return fmt.Errorf("%w: location is required", domain.ErrInvalidParameter)
	}
	if !loc.Valid() {
		return fmt.Errorf("%w: lat/lng out of range", domain.ErrInvalidParameter)
	}
	return nil
}

func (s *Service) resolve(ctx context.Context, loc domain.Location) LocationView {
	view := LocationView{Lat: loc.Lat, Lng: loc.Lng}
	if s.deps.Geo == nil {
		return view
	}
	if id := s.deps.Geo.Resolve(ctx, loc); id != nil {
		view.GeoIdentity = *id
	}
	return view
}

// ranked runs the shared tail of the ranking flows: travel, ratings, rank, top-N.
func (s *Service) ranked(ctx context.Context, origin domain.Location, merged []domain.VenueCandidate, limit int) []domain.RankedRecommendation {
	list := merged
	if s.deps.Travel != nil {
		list = s.deps.Travel.Enrich(ctx, &origin, list)
	}
	list = venue.EnrichRatings(ctx, list, s.opts.RatingTopN, s.deps.Ratings, s.opts.RatingConcurrency)
	return rankTop(list, limit)
}

// recoverFlow turns a panic in a flow into ErrPipeline. It must be deferred
// directly.
func recoverFlow(ctx context.Context, flow string, err *error) {
	if r := recover(); r != nil {
		logging.Ctx(ctx).Error().Str("flow", flow).Interface("panic", r).Msg("pipeline panicked")
		*err = fmt.Errorf("%w: %s: %v", ErrPipeline, flow, r)
	}
}

// goSignal runs fn on its own goroutine. A panic there degrades only that
// signal.
func goSignal(ctx context.Context, wg *sync.WaitGroup, signal string, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				degrade(ctx, signal, fmt.Errorf("%w: %s panicked: %v", ErrPipeline, signal, r))
			}
		}()
		fn()
	}()
}

func degrade(ctx context.Context, signal string, err error) {
	logging.Ctx(ctx).Warn().Err(err).Str("signal", signal).Str("kind", domain.Classify(err)).Msg("signal degraded")
	metrics.RecordDegraded(signal)
}
