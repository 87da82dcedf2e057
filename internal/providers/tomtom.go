package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/traffic"
)

const DefaultTomTomURL = "https://api.tomtom.com"

// TomTom reads the flow segment nearest to a point.
type TomTom struct {
	apiKey  string
	baseURL string
	ep      *endpoint
}

func NewTomTom(httpCfg HTTPClientConfig, apiKey, baseURL string) *TomTom {
	if baseURL == "" {
		baseURL = DefaultTomTomURL
	}
	return &TomTom{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		ep:      newEndpoint("tomtom", httpCfg),
	}
}

func (t *TomTom) Name() string {
	return "tomtom"
}

// Traffic implements traffic.Provider.
func (t *TomTom) Traffic(ctx context.Context, loc domain.Location) (*traffic.Report, error) {
	if t.apiKey == "" {
		return nil, missingCredential(t.Name())
	}
	q := url.Values{}
	q.Set("point", loc.LL())
	q.Set("key", t.apiKey)

	var payload struct {
		FlowSegmentData *struct {
			CurrentSpeed  float64  `json:"currentSpeed"`
			FreeFlowSpeed float64  `json:"freeFlowSpeed"`
			Confidence    *float64 `json:"confidence"`
		} `json:"flowSegmentData"`
	}
	err := t.ep.getJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		u := t.baseURL + "/traffic/services/4/flowSegmentData/absolute/10/json?" + q.Encode()
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}, &payload)
	if err != nil {
		return nil, err
	}

	f := payload.FlowSegmentData
	if f == nil {
		return nil, fmt.Errorf("tomtom: %w: missing flowSegmentData", domain.ErrUpstream)
	}
	r, ok := traffic.FromSpeeds(t.Name(), f.CurrentSpeed, f.FreeFlowSpeed, f.Confidence)
	if !ok {
		return nil, fmt.Errorf("tomtom: %w: no free flow speed", domain.ErrUpstream)
	}
	return r, nil
}
