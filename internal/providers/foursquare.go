package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/codeGROOVE-dev/retry"
	"github.com/goccy/go-json"

	"github.com/i474232898/venue-context-aggregation/internal/common"
	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/geo"
	"github.com/i474232898/venue-context-aggregation/internal/logging"
	"github.com/i474232898/venue-context-aggregation/internal/venue"
)

const (
	DefaultFoursquareHost         = "https://places-api.foursquare.com"
	DefaultFoursquareFallbackHost = "https://api.foursquare.com/v3"
)

// FoursquarePlaces implements venue search, venue details and the nearby
// venue lookups used by the geocoding cascade.
type FoursquarePlaces struct {
	name      string
	apiKey    string
	version   string
	endpoints []hostEndpoint
}

type hostEndpoint struct {
	baseURL string
	ep      *endpoint
}

// NewFoursquarePlaces builds the client. hosts are tried in order, at most
// once each; the usual configuration is a primary and one fallback.
func NewFoursquarePlaces(httpCfg HTTPClientConfig, apiKey, version string, hosts ...string) *FoursquarePlaces {
	if len(hosts) == 0 {
		hosts = []string{DefaultFoursquareHost, DefaultFoursquareFallbackHost}
	}
	p := &FoursquarePlaces{
		name:    "foursquare",
		apiKey:  strings.TrimSpace(apiKey),
		version: version,
	}
	for i, h := range hosts {
		if h = strings.TrimRight(strings.TrimSpace(h), "/"); h == "" {
			continue
		}
		name := p.name
		if i > 0 {
			name = fmt.Sprintf("%s-fallback-%d", p.name, i)
		}
		p.endpoints = append(p.endpoints, hostEndpoint{baseURL: h, ep: newEndpoint(name, httpCfg)})
	}
	return p
}

func (p *FoursquarePlaces) Name() string {
	return p.name
}

// Search runs a places search.
func (p *FoursquarePlaces) Search(ctx context.Context, params venue.SearchParams) ([]domain.VenueCandidate, error) {
	q := url.Values{}
	q.Set("query", params.Query)
	limit := params.Limit
	if limit <= 0 {
		limit = 10
	}
	q.Set("limit", strconv.Itoa(limit))
	if params.Location != nil {
		q.Set("ll", params.Location.LL())
	}
	if params.RadiusMeters > 0 {
		q.Set("radius", strconv.Itoa(params.RadiusMeters))
	}
	if len(params.Categories) > 0 {
		q.Set("categories", strings.Join(params.Categories, ","))
	}

	var payload struct {
		Results []fsqPlace `json:"results"`
	}
	if err := p.get(ctx, "/places/search", q, &payload); err != nil {
		return nil, err
	}

	out := make([]domain.VenueCandidate, 0, len(payload.Results))
	for _, r := range payload.Results {
		out = append(out, r.candidate())
	}
	return out, nil
}

// NearbyVenues adapts Search for the geocoding cascade.
func (p *FoursquarePlaces) NearbyVenues(ctx context.Context, loc domain.Location, query string, radiusMeters, limit int) ([]geo.NearbyVenue, error) {
	list, err := p.Search(ctx, venue.SearchParams{Query: query, Location: &loc, RadiusMeters: radiusMeters, Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]geo.NearbyVenue, 0, len(list))
	for _, v := range list {
		nv := geo.NearbyVenue{Name: v.Name, DistanceMeters: v.DistanceMeters}
		if v.Address != nil {
			nv.City, nv.Region, nv.Country = v.Address.City, v.Address.Region, v.Address.Country
		}
		out = append(out, nv)
	}
	return out, nil
}

// Rating looks up venue details and returns its rating, nil when unrated.
func (p *FoursquarePlaces) Rating(ctx context.Context, id string) (*float64, error) {
	var place fsqPlace
	if err := p.get(ctx, "/places/"+url.PathEscape(id), nil, &place); err != nil {
		return nil, err
	}
	return place.Rating, nil
}

// get tries each host once. A missing credential is never retried.
func (p *FoursquarePlaces) get(ctx context.Context, path string, q url.Values, out any) error {
	if p.apiKey == "" {
		return missingCredential(p.name)
	}
	if len(p.endpoints) == 0 {
		return fmt.Errorf("%s: %w: no host configured", p.name, domain.ErrMissingCredential)
	}

	attempt := 0
	var lastErr error
	err := retry.Do(
		func() error {
			host := p.endpoints[min(attempt, len(p.endpoints)-1)]
			attempt++
			lastErr = host.ep.getJSON(ctx, func(ctx context.Context) (*http.Request, error) {
				return p.newRequest(ctx, host.baseURL+path, q)
			}, out)
			return lastErr
		},
		retry.Context(context.WithoutCancel(ctx)),
		retry.Attempts(uint(len(p.endpoints))),
		retry.Delay(0),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			// Only an upstream answer moves traffic to the fallback host.
			return !errors.Is(err, errLocalBudget)
		}),
		retry.OnRetry(func(n uint, err error) {
			logging.Ctx(ctx).Debug().Err(err).Str("provider", p.name).Uint("attempt", n+1).Msg("trying fallback host")
		}),
	)
	if err != nil && lastErr != nil {
		return lastErr
	}
	return err
}

func (p *FoursquarePlaces) newRequest(ctx context.Context, u string, q url.Values) (*http.Request, error) {
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	setFoursquareHeaders(req, p.apiKey, p.version)
	return req, nil
}

func setFoursquareHeaders(req *http.Request, apiKey, version string) {
	req.Header.Set("Authorization", apiKey)
	req.Header.Set("Accept", "application/json")
	if version != "" {
		req.Header.Set("X-Places-Api-Version", version)
	}
}

// FoursquarePersonalization implements venue.Personalizer.
type FoursquarePersonalization struct {
	name    string
	apiKey  string
	version string
	baseURL string
	ep      *endpoint
}

func NewFoursquarePersonalization(httpCfg HTTPClientConfig, apiKey, version, host string) *FoursquarePersonalization {
	if host = strings.TrimRight(strings.TrimSpace(host), "/"); host == "" {
		host = DefaultFoursquareHost
	}
	return &FoursquarePersonalization{
		name:    "foursquare-personalization",
		apiKey:  strings.TrimSpace(apiKey),
		version: version,
		baseURL: host,
		ep:      newEndpoint("foursquare-personalization", httpCfg),
	}
}

func (p *FoursquarePersonalization) Enabled() bool {
	return p != nil && p.apiKey != ""
}

func (p *FoursquarePersonalization) Recommend(ctx context.Context, userID string, params venue.SearchParams) ([]domain.VenueCandidate, error) {
	if !p.Enabled() {
		return nil, missingCredential(p.name)
	}
	if params.Location == nil {
		return nil, fmt.Errorf("%s: %w: ll required", p.name, domain.ErrInvalidParameter)
	}

	q := url.Values{}
	if userID != "" {
		q.Set("user_id", userID)
	}
	q.Set("ll", params.Location.LL())
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	q.Set("limit", strconv.Itoa(limit))
	if params.RadiusMeters > 0 {
		q.Set("radius", strconv.Itoa(params.RadiusMeters))
	}
	if len(params.Categories) > 0 {
		q.Set("categories", strings.Join(params.Categories, ","))
	}

	var raw json.RawMessage
	err := p.ep.getJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/personalization/recommendations?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		setFoursquareHeaders(req, p.apiKey, p.version)
		return req, nil
	}, &raw)
	if err != nil {
		return nil, err
	}
	items, err := decodeRecommendations(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", p.name, domain.ErrUpstream, err)
	}

	out := make([]domain.VenueCandidate, 0, len(items))
	for _, item := range items {
		place := item.fsqPlace
		if item.Place != nil {
			place = *item.Place
		}
		c := place.candidate()
		c.Score = item.Score
		c.Reasons = decodeReasons(item.Reasons)
		c.Source = domain.SourcePersonalized
		out = append(out, c)
	}
	return out, nil
}

type fsqRecommendation struct {
	Place   *fsqPlace       `json:"place"`
	Score   *float64        `json:"score"`
	Reasons json.RawMessage `json:"reasons"`
	fsqPlace
}

// decodeRecommendations accepts either {"results": [...]} or a bare array.
func decodeRecommendations(raw json.RawMessage) ([]fsqRecommendation, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var items []fsqRecommendation
		err := json.Unmarshal(raw, &items)
		return items, err
	}
	var wrapped struct {
		Results []fsqRecommendation `json:"results"`
	}
	err := json.Unmarshal(raw, &wrapped)
	return wrapped.Results, err
}

type fsqGeocode struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type fsqPlace struct {
	FsqID      string   `json:"fsq_id"`
	FsqPlaceID string   `json:"fsq_place_id"`
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Distance   *float64 `json:"distance"`
	Rating     *float64 `json:"rating"`
	Categories []struct {
		Name string `json:"name"`
	} `json:"categories"`
	Geocodes struct {
		Main *fsqGeocode `json:"main"`
		Roof *fsqGeocode `json:"roof"`
	} `json:"geocodes"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Location  *struct {
		FormattedAddress string `json:"formatted_address"`
		City             string `json:"city"`
		Locality         string `json:"locality"`
		Region           string `json:"region"`
		Country          string `json:"country"`
	} `json:"location"`
}

func (p fsqPlace) candidate() domain.VenueCandidate {
	c := domain.VenueCandidate{
		ID:             common.FirstNonEmpty(p.FsqID, p.FsqPlaceID, p.ID),
		Name:           p.Name,
		Categories:     make([]string, 0, len(p.Categories)),
		Rating:         p.Rating,
		DistanceMeters: p.Distance,
		Source:         domain.SourceBase,
	}
	for _, cat := range p.Categories {
		c.Categories = append(c.Categories, cat.Name)
	}

	// Roof points are entrance-level and preferred over the main point.
	switch {
	case p.Geocodes.Roof != nil:
		c.Geocode = &domain.Location{Lat: p.Geocodes.Roof.Latitude, Lng: p.Geocodes.Roof.Longitude}
	case p.Geocodes.Main != nil:
		c.Geocode = &domain.Location{Lat: p.Geocodes.Main.Latitude, Lng: p.Geocodes.Main.Longitude}
	case p.Latitude != nil && p.Longitude != nil:
		c.Geocode = &domain.Location{Lat: *p.Latitude, Lng: *p.Longitude}
	}

	if p.Location != nil {
		c.Address = &domain.Address{
			Formatted: p.Location.FormattedAddress,
			City:      common.FirstNonEmpty(p.Location.City, p.Location.Locality),
			Region:    p.Location.Region,
			Country:   p.Location.Country,
		}
	}
	return c
}

// decodeReasons accepts a list of strings or a list of objects with a
// summary-like field.
func decodeReasons(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var plain []string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	var objs []struct {
		Summary string `json:"summary"`
		Text    string `json:"text"`
		Reason  string `json:"reason"`
		Type    string `json:"type"`
	}
	if err := json.Unmarshal(raw, &objs); err == nil {
		out := make([]string, 0, len(objs))
		for _, o := range objs {
			if s := common.FirstNonEmpty(o.Summary, o.Text, o.Reason, o.Type); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
