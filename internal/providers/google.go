package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/geo"
	"github.com/i474232898/venue-context-aggregation/internal/logging"
	"github.com/i474232898/venue-context-aggregation/internal/timezone"
	"github.com/i474232898/venue-context-aggregation/internal/traffic"
	"github.com/i474232898/venue-context-aggregation/internal/travel"
)

const (
	DefaultGoogleMapsURL     = "https://maps.googleapis.com"
	DefaultGoogleCalendarURL = "https://www.googleapis.com"

	// trafficProbeDelta is roughly one kilometre in degrees.
	trafficProbeDelta = 0.009
)

// GoogleMaps wraps the Maps Platform web services: reverse geocoding,
// distance matrix and timezone.
type GoogleMaps struct {
	apiKey  string
	baseURL string

	geocode  *endpoint
	matrix   *endpoint
	timezone *endpoint
}

func NewGoogleMaps(httpCfg HTTPClientConfig, apiKey, baseURL string) *GoogleMaps {
	if baseURL == "" {
		baseURL = DefaultGoogleMapsURL
	}
	return &GoogleMaps{
		apiKey:   strings.TrimSpace(apiKey),
		baseURL:  strings.TrimRight(baseURL, "/"),
		geocode:  newEndpoint("google-geocode", httpCfg),
		matrix:   newEndpoint("google-distancematrix", httpCfg),
		timezone: newEndpoint("google-timezone", httpCfg),
	}
}

func (g *GoogleMaps) Name() string {
	return "google"
}

func (g *GoogleMaps) get(ctx context.Context, ep *endpoint, path string, q url.Values, out any) error {
	if g.apiKey == "" {
		return missingCredential(ep.name)
	}
	q.Set("key", g.apiKey)
	return ep.getJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path+"?"+q.Encode(), nil)
	}, out)
}

// googleStatus maps the status field carried in every Maps response body.
func googleStatus(name, status string) error {
	switch status {
	case "OK", "ZERO_RESULTS":
		return nil
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		return fmt.Errorf("%s: %w", name, domain.ErrRateLimited)
	case "INVALID_REQUEST":
		return fmt.Errorf("%s: %w: %s", name, domain.ErrInvalidParameter, status)
	default:
		return fmt.Errorf("%s: %w: status %s", name, domain.ErrUpstream, status)
	}
}

// ReverseGeocode implements geo.ReverseGeocoder.
func (g *GoogleMaps) ReverseGeocode(ctx context.Context, loc domain.Location, localityOnly bool) ([]geo.AddressResult, error) {
	q := url.Values{}
	q.Set("latlng", loc.LL())
	q.Set("language", "en")
	if localityOnly {
		q.Set("result_type", "locality")
	}

	var payload struct {
		Status  string `json:"status"`
		Results []struct {
			FormattedAddress  string `json:"formatted_address"`
			AddressComponents []struct {
				LongName  string   `json:"long_name"`
				ShortName string   `json:"short_name"`
				Types     []string `json:"types"`
			} `json:"address_components"`
		} `json:"results"`
	}
	if err := g.get(ctx, g.geocode, "/maps/api/geocode/json", q, &payload); err != nil {
		return nil, err
	}
	if err := googleStatus(g.geocode.name, payload.Status); err != nil {
		return nil, err
	}

	out := make([]geo.AddressResult, 0, len(payload.Results))
	for _, r := range payload.Results {
		res := geo.AddressResult{FormattedAddress: r.FormattedAddress}
		for _, c := range r.AddressComponents {
			res.Components = append(res.Components, geo.AddressComponent{
				LongName:  c.LongName,
				ShortName: c.ShortName,
				Types:     c.Types,
			})
		}
		out = append(out, res)
	}
	return out, nil
}

type googleValue struct {
	Value float64 `json:"value"`
}

type distanceMatrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status            string       `json:"status"`
			Distance          *googleValue `json:"distance"`
			Duration          *googleValue `json:"duration"`
			DurationInTraffic *googleValue `json:"duration_in_traffic"`
		} `json:"elements"`
	} `json:"rows"`
}

func (g *GoogleMaps) distanceMatrix(ctx context.Context, origin domain.Location, destinations []domain.Location, q url.Values) (distanceMatrixResponse, error) {
	dests := make([]string, len(destinations))
	for i, d := range destinations {
		dests[i] = d.LL()
	}
	q.Set("origins", origin.LL())
	q.Set("destinations", strings.Join(dests, "|"))
	q.Set("mode", "driving")
	q.Set("departure_time", "now")

	var payload distanceMatrixResponse
	if err := g.get(ctx, g.matrix, "/maps/api/distancematrix/json", q, &payload); err != nil {
		return payload, err
	}
	if payload.Status != "OK" {
		if err := googleStatus(g.matrix.name, payload.Status); err != nil {
			return payload, err
		}
		return payload, fmt.Errorf("%s: %w: status %s", g.matrix.name, domain.ErrUpstream, payload.Status)
	}
	return payload, nil
}

// Matrix implements travel.MatrixProvider.
func (g *GoogleMaps) Matrix(ctx context.Context, origin domain.Location, destinations []domain.Location) ([]travel.MatrixElement, error) {
	payload, err := g.distanceMatrix(ctx, origin, destinations, url.Values{})
	if err != nil {
		return nil, err
	}

	out := make([]travel.MatrixElement, len(destinations))
	if len(payload.Rows) == 0 {
		return out, nil
	}
	elems := payload.Rows[0].Elements
	for i := range out {
		if i >= len(elems) {
			break
		}
		e := elems[i]
		if e.Status != "OK" || e.Distance == nil {
			continue
		}
		out[i] = travel.MatrixElement{OK: true, DistanceMeters: e.Distance.Value}
		if e.Duration != nil {
			out[i].DurationSeconds = domain.Float(e.Duration.Value)
		}
	}
	return out, nil
}

// Lookup implements timezone.Provider.
func (g *GoogleMaps) Lookup(ctx context.Context, loc domain.Location, at time.Time) (timezone.Zone, error) {
	q := url.Values{}
	q.Set("location", loc.LL())
	q.Set("timestamp", strconv.FormatInt(at.Unix(), 10))

	var payload struct {
		Status       string  `json:"status"`
		TimeZoneID   string  `json:"timeZoneId"`
		TimeZoneName string  `json:"timeZoneName"`
		RawOffset    float64 `json:"rawOffset"`
		DstOffset    float64 `json:"dstOffset"`
	}
	if err := g.get(ctx, g.timezone, "/maps/api/timezone/json", q, &payload); err != nil {
		return timezone.Zone{}, err
	}
	if payload.Status != "OK" || payload.TimeZoneID == "" {
		return timezone.Zone{}, fmt.Errorf("%s: %w: status %s", g.timezone.name, domain.ErrUpstream, payload.Status)
	}
	return timezone.Zone{
		Provider:     g.Name(),
		ID:           payload.TimeZoneID,
		Name:         payload.TimeZoneName,
		RawOffsetSec: int(payload.RawOffset),
		DstOffsetSec: int(payload.DstOffset),
	}, nil
}

// GoogleTraffic estimates congestion by timing short drives from the
// location with and without traffic.
type GoogleTraffic struct {
	maps *GoogleMaps
}

func NewGoogleTraffic(maps *GoogleMaps) *GoogleTraffic {
	return &GoogleTraffic{maps: maps}
}

func (t *GoogleTraffic) Name() string {
	return "google"
}

// Traffic probes one destination per compass direction and returns the
// first usable measurement.
func (t *GoogleTraffic) Traffic(ctx context.Context, loc domain.Location) (*traffic.Report, error) {
	probes := []domain.Location{
		{Lat: loc.Lat + trafficProbeDelta, Lng: loc.Lng},
		{Lat: loc.Lat, Lng: loc.Lng + trafficProbeDelta},
		{Lat: loc.Lat - trafficProbeDelta, Lng: loc.Lng},
		{Lat: loc.Lat, Lng: loc.Lng - trafficProbeDelta},
	}

	var lastErr error
	for _, dest := range probes {
		q := url.Values{}
		q.Set("traffic_model", "best_guess")
		payload, err := t.maps.distanceMatrix(ctx, loc, []domain.Location{dest}, q)
		if err != nil {
			lastErr = err
			if !isProbeRetryable(err) {
				return nil, err
			}
			continue
		}
		if len(payload.Rows) == 0 || len(payload.Rows[0].Elements) == 0 {
			continue
		}
		e := payload.Rows[0].Elements[0]
		if e.Status != "OK" || e.Duration == nil || e.DurationInTraffic == nil {
			continue
		}
		if r, ok := traffic.FromDurations(t.Name(), e.Duration.Value, e.DurationInTraffic.Value); ok {
			return r, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("google traffic: %w: no usable probe", domain.ErrUpstream)
}

func isProbeRetryable(err error) bool {
	k := domain.Classify(err)
	return k != "missing_credential" && k != "rate_limited"
}

// GoogleCalendar reads the primary calendar with a caller-supplied OAuth
// access token.
type GoogleCalendar struct {
	baseURL string
	ep      *endpoint
}

func NewGoogleCalendar(httpCfg HTTPClientConfig, baseURL string) *GoogleCalendar {
	if baseURL == "" {
		baseURL = DefaultGoogleCalendarURL
	}
	return &GoogleCalendar{
		baseURL: strings.TrimRight(baseURL, "/"),
		ep:      newEndpoint("google-calendar", httpCfg),
	}
}

// Events implements calendar.TokenSource. All-day events start at local
// midnight in from's location.
func (c *GoogleCalendar) Events(ctx context.Context, accessToken string, from, to time.Time) ([]domain.CalendarEvent, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, missingCredential(c.ep.name)
	}

	q := url.Values{}
	q.Set("timeMin", from.Format(time.RFC3339))
	q.Set("timeMax", to.Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")
	q.Set("maxResults", "250")

	var payload struct {
		Items []struct {
			Summary string        `json:"summary"`
			Start   calendarStamp `json:"start"`
			End     calendarStamp `json:"end"`
		} `json:"items"`
	}
	err := c.ep.getJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/calendar/v3/calendars/primary/events?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, &payload)
	if err != nil {
		return nil, err
	}

	out := make([]domain.CalendarEvent, 0, len(payload.Items))
	for _, item := range payload.Items {
		start, okStart := item.Start.time(from.Location())
		end, okEnd := item.End.time(from.Location())
		if !okStart || !okEnd {
			logging.Ctx(ctx).Debug().Str("title", item.Summary).Msg("skipping calendar event with unreadable times")
			continue
		}
		out = append(out, domain.CalendarEvent{Title: item.Summary, Start: start, End: end})
	}
	return out, nil
}

type calendarStamp struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

func (s calendarStamp) time(loc *time.Location) (time.Time, bool) {
	if s.DateTime != "" {
		t, err := time.Parse(time.RFC3339, s.DateTime)
		return t, err == nil
	}
	if s.Date != "" {
		t, err := time.ParseInLocation(time.DateOnly, s.Date, loc)
		return t, err == nil
	}
	return time.Time{}, false
}
