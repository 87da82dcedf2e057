package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/metrics"
	"github.com/i474232898/venue-context-aggregation/internal/timezone"
	"github.com/i474232898/venue-context-aggregation/internal/traffic"
	"github.com/i474232898/venue-context-aggregation/internal/venue"
	"github.com/i474232898/venue-context-aggregation/internal/weather"
)

type ContextRequest struct {
	Location    *domain.Location
	Query       string
	AccessToken string
}

// Bundle is the context view of a location. Every signal is optional.
type Bundle struct {
	Location    LocationView            `json:"location"`
	Weather     *domain.WeatherSnapshot `json:"weather"`
	Timezone    timezone.Info           `json:"timezone"`
	Traffic     *traffic.Report         `json:"traffic"`
	Places      []domain.VenueCandidate `json:"places"`
	FreeSlots   []domain.FreeSlot       `json:"freeSlots"`
	Suggestion  weather.Classification  `json:"suggestion"`
	GeneratedAt time.Time               `json:"generatedAt"`
}

// Context gathers every signal for a location concurrently. Failures of
// individual signals leave their field empty.
func (s *Service) Context(ctx context.Context, req ContextRequest) (b Bundle, err error) {
	defer metrics.ObservePipeline("context")()
	defer recoverFlow(ctx, "context", &err)

	if err := validate(req.Location); err != nil {
		return Bundle{}, err
	}
	loc := *req.Location
	b = Bundle{
		Places:      []domain.VenueCandidate{},
		FreeSlots:   []domain.FreeSlot{},
		GeneratedAt: s.deps.Clock.Now().UTC(),
	}

	b.Location = LocationView{Lat: loc.Lat, Lng: loc.Lng}

	var wg sync.WaitGroup
	goSignal(ctx, &wg, "geocode", func() { b.Location = s.resolve(ctx, loc) })
	goSignal(ctx, &wg, "weather", func() { b.Weather = s.currentWeather(ctx, loc) })
	goSignal(ctx, &wg, "traffic", func() {
		if s.deps.Traffic != nil {
			b.Traffic = s.deps.Traffic.Get(ctx, loc)
		}
	})
	goSignal(ctx, &wg, "places", func() { b.Places = s.places(ctx, loc, req.Query) })
	goSignal(ctx, &wg, "calendar", func() {
		b.Timezone = s.timezone(ctx, loc)
		b.FreeSlots = s.freeSlots(ctx, req.AccessToken, b.Timezone)
	})
	wg.Wait()

	var first *domain.FreeSlot
	if len(b.FreeSlots) > 0 {
		first = &b.FreeSlots[0]
	}
	b.Suggestion = weather.Classify(b.Weather, first)
	return b, nil
}

func (s *Service) currentWeather(ctx context.Context, loc domain.Location) *domain.WeatherSnapshot {
	if s.deps.Weather == nil {
		return nil
	}
	w, err := s.deps.Weather.Current(ctx, loc)
	if err != nil {
		degrade(ctx, "weather", err)
		return nil
	}
	return w
}

func (s *Service) timezone(ctx context.Context, loc domain.Location) timezone.Info {
	return s.deps.Timezone.Get(ctx, loc)
}

func (s *Service) places(ctx context.Context, loc domain.Location, query string) []domain.VenueCandidate {
	if s.deps.Venues == nil {
		return []domain.VenueCandidate{}
	}
	if query = strings.TrimSpace(query); query == "" {
		query = s.opts.ContextQuery
	}
	list, err := s.deps.Venues.SearchBase(ctx, venue.SearchParams{Query: query, Location: &loc, Limit: s.opts.ContextLimit})
	if err != nil {
		degrade(ctx, "places", err)
		return []domain.VenueCandidate{}
	}
	if list == nil {
		list = []domain.VenueCandidate{}
	}
	return list
}

// freeSlots computes today's free slots in the location's local time.
func (s *Service) freeSlots(ctx context.Context, token string, tz timezone.Info) []domain.FreeSlot {
	if s.deps.Calendar == nil {
		return []domain.FreeSlot{}
	}
	now := s.deps.Clock.Now().In(tz.Location())
	slots := s.deps.Calendar.FreeSlotsToday(ctx, token, now)
	if slots == nil {
		return []domain.FreeSlot{}
	}
	return slots
}
