package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/metrics"
	"github.com/i474232898/venue-context-aggregation/internal/ranking"
	"github.com/i474232898/venue-context-aggregation/internal/venue"
)

// ErrPipeline marks a failure of the orchestration itself.
var ErrPipeline = errors.New("pipeline failure")

type RecommendRequest struct {
	Location     *domain.Location
	UserID       string
	Query        string
	Categories   []string
	RadiusMeters int
	Limit        int
}

type RecommendResponse struct {
	Count    int                           `json:"count"`
	Results  []domain.RankedRecommendation `json:"results"`
	Location *LocationView                 `json:"location,omitempty"`
}

// Recommend returns ranked venues near the request location. Geo resolution
// and both search branches run concurrently. Only invalid input and a base
// search without credentials are returned as errors.
func (s *Service) Recommend(ctx context.Context, req RecommendRequest) (resp RecommendResponse, err error) {
	defer metrics.ObservePipeline("recommend")()
	defer recoverFlow(ctx, "recommend", &err)

	if err := validate(req.Location); err != nil {
		return RecommendResponse{}, err
	}
	if s.deps.Venues == nil {
		return RecommendResponse{}, fmt.Errorf("venue search: %w", domain.ErrMissingCredential)
	}
	loc := *req.Location

	params := venue.SearchParams{
		Query:        strings.TrimSpace(req.Query),
		Location:     &loc,
		RadiusMeters: req.RadiusMeters,
		Categories:   req.Categories,
		Limit:        req.Limit,
	}
	if params.Query == "" {
		params.Query = s.opts.Query
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.opts.Limit
		params.Limit = s.opts.Limit
	}

	var (
		wg      sync.WaitGroup
		results venue.Results
	)
	view := LocationView{Lat: loc.Lat, Lng: loc.Lng}
	goSignal(ctx, &wg, "geocode", func() { view = s.resolve(ctx, loc) })
	results, err = s.deps.Venues.Search(ctx, req.UserID, params)
	wg.Wait()
	if err != nil {
		return RecommendResponse{}, err
	}

	merged := venue.Merge(results.Base, results.Personalized)
	top := s.ranked(ctx, loc, merged, limit)
	return RecommendResponse{Count: len(top), Results: top, Location: &view}, nil
}

func rankTop(list []domain.VenueCandidate, limit int) []domain.RankedRecommendation {
	ranked := ranking.Top(ranking.Rank(list), limit)
	if ranked == nil {
		ranked = []domain.RankedRecommendation{}
	}
	return ranked
}
