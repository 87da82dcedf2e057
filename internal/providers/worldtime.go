package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/timezone"
)

const DefaultWorldTimeURL = "https://worldtimeapi.org"

// WorldTime resolves the zone of the server's public IP. It needs no
// credential and ignores the coordinates, so it only serves as a fallback.
type WorldTime struct {
	baseURL string
	ep      *endpoint
}

func NewWorldTime(httpCfg HTTPClientConfig, baseURL string) *WorldTime {
	if baseURL == "" {
		baseURL = DefaultWorldTimeURL
	}
	return &WorldTime{
		baseURL: strings.TrimRight(baseURL, "/"),
		ep:      newEndpoint("worldtime", httpCfg),
	}
}

func (w *WorldTime) Name() string {
	return "worldtime"
}

// Lookup implements timezone.Provider.
func (w *WorldTime) Lookup(ctx context.Context, _ domain.Location, _ time.Time) (timezone.Zone, error) {
	var payload struct {
		Timezone     string `json:"timezone"`
		Abbreviation string `json:"abbreviation"`
		RawOffset    int    `json:"raw_offset"`
		DstOffset    int    `json:"dst_offset"`
	}
	err := w.ep.getJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/api/ip", nil)
	}, &payload)
	if err != nil {
		return timezone.Zone{}, err
	}
	if payload.Timezone == "" {
		return timezone.Zone{}, fmt.Errorf("worldtime: %w: empty timezone", domain.ErrUpstream)
	}
	return timezone.Zone{
		Provider:     w.Name(),
		ID:           payload.Timezone,
		Name:         payload.Abbreviation,
		RawOffsetSec: payload.RawOffset,
		DstOffsetSec: payload.DstOffset,
	}, nil
}
