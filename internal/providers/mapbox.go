package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/travel"
)

const DefaultMapboxURL = "https://api.mapbox.com"

// Mapbox is the secondary travel matrix provider.
type Mapbox struct {
	token   string
	baseURL string
	ep      *endpoint
}

func NewMapbox(httpCfg HTTPClientConfig, token, baseURL string) *Mapbox {
	if baseURL == "" {
		baseURL = DefaultMapboxURL
	}
	return &Mapbox{
		token:   strings.TrimSpace(token),
		baseURL: strings.TrimRight(baseURL, "/"),
		ep:      newEndpoint("mapbox", httpCfg),
	}
}

func (m *Mapbox) Name() string {
	return "mapbox"
}

// Matrix implements travel.MatrixProvider. Coordinates are lng,lat with the
// origin at index 0.
func (m *Mapbox) Matrix(ctx context.Context, origin domain.Location, destinations []domain.Location) ([]travel.MatrixElement, error) {
	if m.token == "" {
		return nil, missingCredential(m.Name())
	}
	if len(destinations) == 0 {
		return nil, nil
	}

	coords := make([]string, 0, len(destinations)+1)
	coords = append(coords, lngLat(origin))
	dstIdx := make([]string, 0, len(destinations))
	for i, d := range destinations {
		coords = append(coords, lngLat(d))
		dstIdx = append(dstIdx, strconv.Itoa(i+1))
	}

	q := url.Values{}
	q.Set("access_token", m.token)
	q.Set("sources", "0")
	q.Set("destinations", strings.Join(dstIdx, ";"))
	q.Set("annotations", "distance,duration")

	var payload struct {
		Code      string       `json:"code"`
		Distances [][]*float64 `json:"distances"`
		Durations [][]*float64 `json:"durations"`
	}
	err := m.ep.getJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		u := m.baseURL + "/directions-matrix/v1/mapbox/driving/" + strings.Join(coords, ";") + "?" + q.Encode()
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}, &payload)
	if err != nil {
		return nil, err
	}
	if payload.Code != "" && payload.Code != "Ok" {
		return nil, fmt.Errorf("mapbox: %w: code %s", domain.ErrUpstream, payload.Code)
	}

	out := make([]travel.MatrixElement, len(destinations))
	if len(payload.Distances) == 0 {
		return out, nil
	}
	// With a restricted destination list the columns line up with
	// destinations; a full matrix carries the origin in column 0.
	offset := 0
	if len(payload.Distances[0]) == len(destinations)+1 {
		offset = 1
	}
	for i := range out {
		col := i + offset
		if col >= len(payload.Distances[0]) || payload.Distances[0][col] == nil {
			continue
		}
		out[i] = travel.MatrixElement{OK: true, DistanceMeters: *payload.Distances[0][col]}
		if len(payload.Durations) > 0 && col < len(payload.Durations[0]) && payload.Durations[0][col] != nil {
			out[i].DurationSeconds = domain.Float(*payload.Durations[0][col])
		}
	}
	return out, nil
}

func lngLat(l domain.Location) string {
	return strconv.FormatFloat(l.Lng, 'f', -1, 64) + "," + strconv.FormatFloat(l.Lat, 'f', -1, 64)
}

const (
	staticMapStyle = "mapbox/streets-v12"
	staticMapZoom  = 13
	staticMapSize  = "800x600@2x"
	staticMapPins  = 5
)

// StaticMapURL renders a street map centered on center with numbered pins,
// the first one highlighted. It returns "" without a token.
func (m *Mapbox) StaticMapURL(center domain.Location, pins []domain.Location) string {
	if m == nil || m.token == "" {
		return ""
	}
	if len(pins) > staticMapPins {
		pins = pins[:staticMapPins]
	}
	markers := make([]string, 0, len(pins))
	for i, p := range pins {
		color := "3fb1ce"
		if i == 0 {
			color = "f74e4e"
		}
		markers = append(markers, fmt.Sprintf("pin-s-%d+%s(%s)", i+1, color, lngLat(p)))
	}
	overlay := ""
	if len(markers) > 0 {
		overlay = strings.Join(markers, ",") + "/"
	}
	return fmt.Sprintf("%s/styles/v1/%s/static/%s%s,%d/%s?access_token=%s",
		m.baseURL, staticMapStyle, overlay, lngLat(center), staticMapZoom, staticMapSize, url.QueryEscape(m.token))
}
