package pipeline

import (
	"context"
	"strings"

	"github.com/i474232898/venue-context-aggregation/internal/calendar"
	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/metrics"
	"github.com/i474232898/venue-context-aggregation/internal/venue"
	"github.com/i474232898/venue-context-aggregation/internal/weather"
)

const (
	msgNoFreeTime         = "No free time slots today."
	msgWeatherUnavailable = "Weather unavailable right now."
	msgSpotsSuffix        = "Here are perfect spots for you:"
)

type SuggestRequest struct {
	Location    *domain.Location
	UserID      string
	AccessToken string
}

type SuggestAdvice struct {
	WeatherAdvice string `json:"weatherAdvice"`
	TimeAdvice    string `json:"timeAdvice"`
}

// Suggestion pairs the next free slot and its forecast with venues suited to both.
type Suggestion struct {
	Message         string                        `json:"message"`
	FreeTime        *domain.FreeSlot              `json:"freeTime,omitempty"`
	Weather         *domain.WeatherSnapshot       `json:"weather,omitempty"`
	Classification  *weather.Classification       `json:"classification,omitempty"`
	Recommendations []domain.RankedRecommendation `json:"recommendations"`
	MapURL          string                        `json:"mapURL,omitempty"`
	Context         *SuggestAdvice                `json:"context,omitempty"`
}

// Suggest plans around the first free slot today. A missing slot or
// forecast is a normal outcome reported in Message.
func (s *Service) Suggest(ctx context.Context, req SuggestRequest) (out Suggestion, err error) {
	defer metrics.ObservePipeline("suggest")()
	defer recoverFlow(ctx, "suggest", &err)

	if err := validate(req.Location); err != nil {
		return Suggestion{}, err
	}
	loc := *req.Location
	out = Suggestion{Recommendations: []domain.RankedRecommendation{}}

	tz := s.timezone(ctx, loc)
	slots := s.freeSlots(ctx, req.AccessToken, tz)
	if len(slots) == 0 {
		out.Message = msgNoFreeTime
		return out, nil
	}
	slot := slots[0]
	out.FreeTime = &slot

	w := s.forecastAt(ctx, loc, slot)
	if w == nil {
		out.Message = msgWeatherUnavailable
		return out, nil
	}
	out.Weather = w

	class := weather.Classify(w, &slot)
	out.Classification = &class
	query := class.Query
	if strings.TrimSpace(query) == "" {
		query = s.opts.ContextQuery
	}

	if s.deps.Venues != nil {
		params := venue.SearchParams{Query: query, Location: &loc, Limit: DefaultLimit}
		results, searchErr := s.deps.Venues.Search(ctx, req.UserID, params)
		if searchErr != nil {
			degrade(ctx, "places", searchErr)
		} else {
			merged := venue.Merge(results.Base, results.Personalized)
			out.Recommendations = s.ranked(ctx, loc, merged, s.opts.SuggestLimit)
		}
	}
	out.MapURL = s.mapURL(loc, out.Recommendations)

	out.Message = strings.Join([]string{calendar.TimeContext(&slot), weather.Context(w), msgSpotsSuffix}, " ")
	out.Context = &SuggestAdvice{
		WeatherAdvice: weather.Advice(w),
		TimeAdvice:    calendar.TimeAdvice(&slot),
	}
	return out, nil
}

// mapURL pins the recommendations that carry coordinates.
func (s *Service) mapURL(center domain.Location, recs []domain.RankedRecommendation) string {
	if s.deps.Maps == nil || len(recs) == 0 {
		return ""
	}
	pins := make([]domain.Location, 0, len(recs))
	for _, r := range recs {
		if r.Geocode != nil {
			pins = append(pins, *r.Geocode)
		}
	}
	return s.deps.Maps.StaticMapURL(center, pins)
}

// forecastAt prefers the forecast point nearest the slot start and falls
// back to current conditions.
func (s *Service) forecastAt(ctx context.Context, loc domain.Location, slot domain.FreeSlot) *domain.WeatherSnapshot {
	if s.deps.Weather == nil {
		return nil
	}
	w, err := s.deps.Weather.ForecastAt(ctx, loc, slot.Start)
	if err == nil {
		return w
	}
	degrade(ctx, "forecast", err)
	return s.currentWeather(ctx, loc)
}
