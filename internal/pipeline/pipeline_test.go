package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/i474232898/venue-context-aggregation/internal/cache"
	"github.com/i474232898/venue-context-aggregation/internal/calendar"
	"github.com/i474232898/venue-context-aggregation/internal/clock"
	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/geo"
	"github.com/i474232898/venue-context-aggregation/internal/travel"
	"github.com/i474232898/venue-context-aggregation/internal/venue"
	"github.com/i474232898/venue-context-aggregation/internal/weather"
)

var origin = domain.Location{Lat: 40.7128, Lng: -74.006}

type fakeSearcher struct {
	mu      sync.Mutex
	results []domain.VenueCandidate
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, p venue.SearchParams) ([]domain.VenueCandidate, error) {
	f.mu.Lock()
	f.queries = append(f.queries, p.Query)
	f.mu.Unlock()
	return f.results, f.err
}

func (f *fakeSearcher) lastQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

type fakeRatings map[string]float64

func (f fakeRatings) Rating(_ context.Context, id string) (*float64, error) {
	if r, ok := f[id]; ok {
		return &r, nil
	}
	return nil, nil
}

type fakeGeocoder struct{}

func (fakeGeocoder) ReverseGeocode(context.Context, domain.Location, bool) ([]geo.AddressResult, error) {
	return []geo.AddressResult{{
		FormattedAddress: "New York, NY, USA",
		Components: []geo.AddressComponent{
			{LongName: "New York", ShortName: "New York", Types: []string{"locality"}},
			{LongName: "New York", ShortName: "NY", Types: []string{"administrative_area_level_1"}},
			{LongName: "United States", ShortName: "US", Types: []string{"country"}},
		},
	}}, nil
}

type fakeFeed struct{ events []domain.CalendarEvent }

func (f fakeFeed) Events(context.Context, time.Time, time.Time) ([]domain.CalendarEvent, error) {
	return f.events, nil
}

type fakeWeather struct {
	reading  weather.ProviderReading
	forecast []weather.ProviderReading
	err      error
}

func (f fakeWeather) Name() string { return "fake" }

func (f fakeWeather) Fetch(context.Context, domain.Location) (weather.ProviderReading, error) {
	return f.reading, f.err
}

func (f fakeWeather) FetchForecast(context.Context, domain.Location) ([]weather.ProviderReading, error) {
	return f.forecast, f.err
}

func near(dLat float64) *domain.Location {
	return &domain.Location{Lat: origin.Lat + dLat, Lng: origin.Lng}
}

func venues() []domain.VenueCandidate {
	return []domain.VenueCandidate{
		{ID: "far", Name: "Far", Rating: domain.Float(9), Geocode: near(0.5)},
		{ID: "close", Name: "Close", Rating: domain.Float(9), Geocode: near(0.01)},
		{ID: "unrated", Name: "Unrated", Geocode: near(0.02)},
	}
}

type fixture struct {
	svc      *Service
	searcher *fakeSearcher
	clock    *clock.Manual
}

func newFixture(t *testing.T, w fakeWeather, events []domain.CalendarEvent) fixture {
	t.Helper()
	clk := clock.NewManual(time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC))
	c := cache.New(100, clk)
	searcher := &fakeSearcher{results: venues()}

	svc := New(Deps{
		Geo:      geo.NewResolver(geo.ModeGoogle, fakeGeocoder{}, nil, c.Namespace("geo", geo.CacheTTL), 0),
		Venues:   venue.NewGateway(searcher, nil, c.Namespace("venue", venue.CacheTTL)),
		Ratings:  fakeRatings{"unrated": 9.5},
		Travel:   travel.NewEnricher(nil, nil, c.Namespace("travel", travel.CacheTTL)),
		Weather:  weather.NewService([]weather.Provider{w}, c.Namespace("weather", weather.CurrentTTL), c.Namespace("forecast", weather.ForecastTTL)),
		Calendar: calendar.NewService(nil, fakeFeed{events: events}, calendar.DefaultMinGap),
		Clock:    clk,
	}, Options{})
	return fixture{svc: svc, searcher: searcher, clock: clk}
}

func rainy() fakeWeather {
	r := weather.ProviderReading{
		ProviderName: "fake",
		Timestamp:    time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		TemperatureC: 12,
		Condition:    domain.ConditionRain,
		Description:  "light rain",
	}
	return fakeWeather{reading: r, forecast: []weather.ProviderReading{r}}
}

func TestRecommendRejectsInvalidLocation(t *testing.T) {
	f := newFixture(t, rainy(), nil)
	for _, loc := range []*domain.Location{nil, {Lat: 91, Lng: 0}} {
		_, err := f.svc.Recommend(context.Background(), RecommendRequest{Location: loc})
		if !errors.Is(err, domain.ErrInvalidParameter) {
			t.Fatalf("expected invalid parameter for %v, got %v", loc, err)
		}
	}
}

func TestRecommendRanksEnrichedCandidates(t *testing.T) {
	f := newFixture(t, rainy(), nil)
	resp, err := f.svc.Recommend(context.Background(), RecommendRequest{Location: &origin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.searcher.lastQuery() != DefaultQuery {
		t.Fatalf("expected default query, got %q", f.searcher.lastQuery())
	}
	if resp.Count != 3 || len(resp.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", resp.Count)
	}

	ids := []string{resp.Results[0].ID, resp.Results[1].ID, resp.Results[2].ID}
	if strings.Join(ids, ",") != "unrated,close,far" {
		t.Fatalf("unexpected order %v", ids)
	}
	for _, r := range resp.Results {
		if r.Travel == nil || r.Travel.Source != domain.TravelEstimate {
			t.Fatalf("expected estimated travel for %s, got %+v", r.ID, r.Travel)
		}
	}
	if resp.Location == nil || resp.Location.City != "New York" || resp.Location.Lat != origin.Lat {
		t.Fatalf("unexpected location %+v", resp.Location)
	}
}

func TestRecommendHonorsLimit(t *testing.T) {
	f := newFixture(t, rainy(), nil)
	resp, err := f.svc.Recommend(context.Background(), RecommendRequest{Location: &origin, Query: "tea", Limit: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Count != 1 || f.searcher.lastQuery() != "tea" {
		t.Fatalf("unexpected response %+v query %q", resp, f.searcher.lastQuery())
	}
}

func TestRecommendMissingBaseCredential(t *testing.T) {
	f := newFixture(t, rainy(), nil)
	f.searcher.err = domain.ErrMissingCredential

	_, err := f.svc.Recommend(context.Background(), RecommendRequest{Location: &origin})
	if !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("expected missing credential, got %v", err)
	}
}

func TestRecommendEmptyIsNotAnError(t *testing.T) {
	f := newFixture(t, rainy(), nil)
	f.searcher.results = nil

	resp, err := f.svc.Recommend(context.Background(), RecommendRequest{Location: &origin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Count != 0 || resp.Results == nil {
		t.Fatalf("expected empty non-nil results, got %+v", resp)
	}
}

func TestContextBundle(t *testing.T) {
	events := []domain.CalendarEvent{
		{Start: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), End: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{Start: time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC), End: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	f := newFixture(t, rainy(), events)

	b, err := f.svc.Context(context.Background(), ContextRequest{Location: &origin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Location.City != "New York" || b.Location.Country != "US" {
		t.Fatalf("unexpected location %+v", b.Location)
	}
	if b.Weather == nil || b.Weather.Condition != domain.ConditionRain {
		t.Fatalf("unexpected weather %+v", b.Weather)
	}
	if b.Timezone.TimezoneID != "UTC" {
		t.Fatalf("expected UTC fallback, got %+v", b.Timezone)
	}
	if b.Traffic != nil {
		t.Fatalf("expected no traffic signal, got %+v", b.Traffic)
	}
	if len(b.Places) != 3 || f.searcher.lastQuery() != DefaultContextQuery {
		t.Fatalf("unexpected places %d query %q", len(b.Places), f.searcher.lastQuery())
	}
	if len(b.FreeSlots) != 2 || b.FreeSlots[0].DurationMinutes != 60 {
		t.Fatalf("unexpected free slots %+v", b.FreeSlots)
	}
	if b.Suggestion.Query != "indoor activities" {
		t.Fatalf("unexpected suggestion %+v", b.Suggestion)
	}
}

func TestContextDegradesFailedSignals(t *testing.T) {
	w := fakeWeather{err: errors.New("weather down")}
	f := newFixture(t, w, nil)
	f.searcher.err = errors.New("places down")

	b, err := f.svc.Context(context.Background(), ContextRequest{Location: &origin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Weather != nil || len(b.Places) != 0 || b.Places == nil {
		t.Fatalf("expected degraded signals, got weather %+v places %+v", b.Weather, b.Places)
	}
	if len(b.Suggestion.Categories) != 0 {
		t.Fatalf("expected empty classification, got %+v", b.Suggestion)
	}
}

func TestSuggestUsesFirstFreeSlot(t *testing.T) {
	events := []domain.CalendarEvent{
		{Start: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), End: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{Start: time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC), End: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	f := newFixture(t, rainy(), events)

	s, err := f.svc.Suggest(context.Background(), SuggestRequest{Location: &origin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.FreeTime == nil || s.FreeTime.DurationMinutes != 60 || s.FreeTime.Start.Hour() != 10 {
		t.Fatalf("unexpected slot %+v", s.FreeTime)
	}
	if f.searcher.lastQuery() != "indoor activities" {
		t.Fatalf("expected classified query, got %q", f.searcher.lastQuery())
	}
	if len(s.Recommendations) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(s.Recommendations))
	}
	if s.Classification == nil || len(s.Classification.Categories) != 1 || s.Classification.Categories[0] != "cafe" {
		t.Fatalf("unexpected classification %+v", s.Classification)
	}
	want := "You have 60 minutes free starting at 10:00. It's raining (12°C) - perfect for cozy indoor activities! Here are perfect spots for you:"
	if s.Message != want {
		t.Fatalf("unexpected message %q", s.Message)
	}
	if s.Context == nil || s.Context.TimeAdvice != "Perfect time for a quick coffee or snack!" {
		t.Fatalf("unexpected advice %+v", s.Context)
	}
}

func TestSuggestNoFreeTime(t *testing.T) {
	events := []domain.CalendarEvent{
		{Start: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), End: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)},
	}
	f := newFixture(t, rainy(), events)

	s, err := f.svc.Suggest(context.Background(), SuggestRequest{Location: &origin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Message != msgNoFreeTime || len(s.Recommendations) != 0 {
		t.Fatalf("unexpected suggestion %+v", s)
	}
}

func TestSuggestWeatherUnavailable(t *testing.T) {
	f := newFixture(t, fakeWeather{err: errors.New("down")}, nil)

	s, err := f.svc.Suggest(context.Background(), SuggestRequest{Location: &origin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Message != msgWeatherUnavailable || s.FreeTime == nil {
		t.Fatalf("unexpected suggestion %+v", s)
	}
}

type panickingGeocoder struct{}

func (panickingGeocoder) ReverseGeocode(context.Context, domain.Location, bool) ([]geo.AddressResult, error) {
	panic("geocoder exploded")
}

type panickingFeed struct{}

func (panickingFeed) Events(context.Context, time.Time, time.Time) ([]domain.CalendarEvent, error) {
	panic("feed exploded")
}

func TestContextSurvivesPanickingSignals(t *testing.T) {
	f := newFixture(t, rainy(), nil)
	f.svc.deps.Geo = geo.NewResolver(geo.ModeGoogle, panickingGeocoder{}, nil, nil, 0)
	f.svc.deps.Calendar = calendar.NewService(nil, panickingFeed{}, calendar.DefaultMinGap)

	b, err := f.svc.Context(context.Background(), ContextRequest{Location: &origin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Location.City != "" || b.Location.Lat != origin.Lat {
		t.Fatalf("expected coordinates without identity, got %+v", b.Location)
	}
	if b.FreeSlots == nil || len(b.FreeSlots) != 0 {
		t.Fatalf("expected empty free slots, got %+v", b.FreeSlots)
	}
	if b.Weather == nil || len(b.Places) != 3 {
		t.Fatalf("other signals should be unaffected, got weather %+v places %d", b.Weather, len(b.Places))
	}
}

func TestRecommendSurvivesPanickingGeocoder(t *testing.T) {
	f := newFixture(t, rainy(), nil)
	f.svc.deps.Geo = geo.NewResolver(geo.ModeGoogle, panickingGeocoder{}, nil, nil, 0)

	resp, err := f.svc.Recommend(context.Background(), RecommendRequest{Location: &origin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Count != 3 || resp.Location == nil || resp.Location.City != "" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestSuggestReportsPanicAsPipelineFailure(t *testing.T) {
	f := newFixture(t, rainy(), nil)
	f.svc.deps.Calendar = calendar.NewService(nil, panickingFeed{}, calendar.DefaultMinGap)

	_, err := f.svc.Suggest(context.Background(), SuggestRequest{Location: &origin})
	if !errors.Is(err, ErrPipeline) {
		t.Fatalf("expected pipeline failure, got %v", err)
	}
}

type recordingMaps struct {
	center domain.Location
	pins   []domain.Location
}

func (m *recordingMaps) StaticMapURL(center domain.Location, pins []domain.Location) string {
	m.center, m.pins = center, pins
	return "https://maps.test/static"
}

func TestSuggestIncludesMapURL(t *testing.T) {
	events := []domain.CalendarEvent{
		{Start: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), End: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
	}
	f := newFixture(t, rainy(), events)
	maps := &recordingMaps{}
	f.svc.deps.Maps = maps

	s, err := f.svc.Suggest(context.Background(), SuggestRequest{Location: &origin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.MapURL != "https://maps.test/static" {
		t.Fatalf("unexpected map url %q", s.MapURL)
	}
	if maps.center != origin || len(maps.pins) != len(s.Recommendations) {
		t.Fatalf("unexpected map input center %+v pins %d", maps.center, len(maps.pins))
	}
	if *s.Recommendations[0].Geocode != maps.pins[0] {
		t.Fatalf("first pin should be the top recommendation")
	}
}
