package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/pipeline"
)

type fakePipeline struct {
	recommendReq pipeline.RecommendRequest
	contextReq   pipeline.ContextRequest
	suggestReq   pipeline.SuggestRequest
	err          error
}

func (f *fakePipeline) Recommend(_ context.Context, req pipeline.RecommendRequest) (pipeline.RecommendResponse, error) {
	f.recommendReq = req
	if f.err != nil {
		return pipeline.RecommendResponse{}, f.err
	}
	return pipeline.RecommendResponse{
		Count:   1,
		Results: []domain.RankedRecommendation{{VenueCandidate: domain.VenueCandidate{ID: "v1", Name: "Cafe"}, FinalScore: 0.9}},
	}, nil
}

func (f *fakePipeline) Context(_ context.Context, req pipeline.ContextRequest) (pipeline.Bundle, error) {
	f.contextReq = req
	if f.err != nil {
		return pipeline.Bundle{}, f.err
	}
	return pipeline.Bundle{Places: []domain.VenueCandidate{}}, nil
}

func (f *fakePipeline) Suggest(_ context.Context, req pipeline.SuggestRequest) (pipeline.Suggestion, error) {
	f.suggestReq = req
	if f.err != nil {
		return pipeline.Suggestion{}, f.err
	}
	return pipeline.Suggestion{Message: "No free time slots today."}, nil
}

func newTestApp(p Pipeline) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, p)
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode body %q: %v", raw, err)
	}
	return resp.StatusCode, body
}

func TestRecommendationsGet(t *testing.T) {
	fp := &fakePipeline{}
	app := newTestApp(fp)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recommendations?lat=32.08&lng=34.78&query=coffee&categories=13032,%2013035&limit=5&userId=u1", nil)
	status, body := do(t, app, req)
	if status != http.StatusOK {
		t.Fatalf("expected status %d, got %d (%v)", http.StatusOK, status, body)
	}
	if body["count"].(float64) != 1 {
		t.Fatalf("unexpected count: %v", body["count"])
	}
	got := fp.recommendReq
	if got.Location == nil || got.Location.Lat != 32.08 || got.Location.Lng != 34.78 {
		t.Fatalf("unexpected location: %+v", got.Location)
	}
	if got.Query != "coffee" || got.Limit != 5 || got.UserID != "u1" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if len(got.Categories) != 2 || got.Categories[1] != "13035" {
		t.Fatalf("unexpected categories: %v", got.Categories)
	}
}

func TestRecommendationsPost(t *testing.T) {
	fp := &fakePipeline{}
	app := newTestApp(fp)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", strings.NewReader(`{"lat":0,"lng":0,"query":"parks"}`))
	req.Header.Set("Content-Type", "application/json")
	status, _ := do(t, app, req)
	if status != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, status)
	}
	if fp.recommendReq.Location == nil || fp.recommendReq.Query != "parks" {
		t.Fatalf("unexpected request: %+v", fp.recommendReq)
	}
}

func TestRecommendationsPostNestedLocation(t *testing.T) {
	fp := &fakePipeline{}
	app := newTestApp(fp)

	body := `{"location":{"lat":40.7,"lng":-74.0},"userId":"u1","query":"coffee"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	status, resp := do(t, app, req)
	if status != http.StatusOK {
		t.Fatalf("expected status %d, got %d (%v)", http.StatusOK, status, resp)
	}
	got := fp.recommendReq
	if got.Location == nil || got.Location.Lat != 40.7 || got.Location.Lng != -74.0 {
		t.Fatalf("unexpected location: %+v", got.Location)
	}
	if got.UserID != "u1" || got.Query != "coffee" {
		t.Fatalf("unexpected request: %+v", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", strings.NewReader(`{"location":{"lat":95,"lng":0}}`))
	req.Header.Set("Content-Type", "application/json")
	if status, _ := do(t, app, req); status != http.StatusBadRequest {
		t.Fatalf("expected status %d for out of range nested lat, got %d", http.StatusBadRequest, status)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", strings.NewReader(`{"location":{"lat":1}}`))
	req.Header.Set("Content-Type", "application/json")
	if status, _ := do(t, app, req); status != http.StatusBadRequest {
		t.Fatalf("expected status %d for missing nested lng, got %d", http.StatusBadRequest, status)
	}
}

func TestRecommendationsValidation(t *testing.T) {
	cases := map[string]string{
		"missing lat":   "/api/v1/recommendations?lng=34.78",
		"lat too large": "/api/v1/recommendations?lat=91&lng=34.78",
		"lng too large": "/api/v1/recommendations?lat=10&lng=181",
		"limit range":   "/api/v1/recommendations?lat=10&lng=10&limit=51",
		"not a number":  "/api/v1/recommendations?lat=abc&lng=10",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			fp := &fakePipeline{}
			status, body := do(t, newTestApp(fp), httptest.NewRequest(http.MethodGet, target, nil))
			if status != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d", http.StatusBadRequest, status)
			}
			if body["error"] != true {
				t.Fatalf("expected error body, got %v", body)
			}
			if fp.recommendReq.Location != nil {
				t.Fatal("pipeline should not be called on invalid input")
			}
		})
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{fmt.Errorf("%w: bad", domain.ErrInvalidParameter), http.StatusBadRequest, ""},
		{fmt.Errorf("venue search: %w", domain.ErrMissingCredential), http.StatusInternalServerError, msgMissingCredential},
		{errors.New("boom"), http.StatusInternalServerError, "failed to build recommendations"},
	}
	for _, tc := range cases {
		app := newTestApp(&fakePipeline{err: tc.err})
		status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/recommendations?lat=1&lng=2", nil))
		if status != tc.status {
			t.Fatalf("%v: expected status %d, got %d", tc.err, tc.status, status)
		}
		if tc.msg != "" && body["message"] != tc.msg {
			t.Fatalf("%v: expected message %q, got %v", tc.err, tc.msg, body["message"])
		}
	}
}

func TestContextCarriesCalendarToken(t *testing.T) {
	fp := &fakePipeline{}
	app := newTestApp(fp)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/context?lat=52.52&lng=13.40&query=bars", nil)
	req.Header.Set(CalendarTokenHeader, "tok")
	status, body := do(t, app, req)
	if status != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, status)
	}
	if fp.contextReq.AccessToken != "tok" || fp.contextReq.Query != "bars" {
		t.Fatalf("unexpected request: %+v", fp.contextReq)
	}
	if _, ok := body["places"]; !ok {
		t.Fatalf("expected places in body, got %v", body)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/context", strings.NewReader(`{"lat":1,"lng":2,"accessToken":"body-tok"}`))
	req.Header.Set("Content-Type", "application/json")
	if status, _ := do(t, app, req); status != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, status)
	}
	if fp.contextReq.AccessToken != "body-tok" {
		t.Fatalf("expected body token, got %q", fp.contextReq.AccessToken)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/context", strings.NewReader(`{"location":{"lat":52.52,"lng":13.4},"query":"bars"}`))
	req.Header.Set("Content-Type", "application/json")
	if status, _ := do(t, app, req); status != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, status)
	}
	if loc := fp.contextReq.Location; loc == nil || loc.Lat != 52.52 || loc.Lng != 13.4 {
		t.Fatalf("unexpected nested location: %+v", loc)
	}
}

func TestSuggestions(t *testing.T) {
	fp := &fakePipeline{}
	app := newTestApp(fp)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/suggestions?lat=1&lng=2&userId=u7", nil)
	req.Header.Set(CalendarTokenHeader, "tok")
	status, body := do(t, app, req)
	if status != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, status)
	}
	if body["message"] != "No free time slots today." {
		t.Fatalf("unexpected message: %v", body["message"])
	}
	if fp.suggestReq.UserID != "u7" || fp.suggestReq.AccessToken != "tok" {
		t.Fatalf("unexpected request: %+v", fp.suggestReq)
	}
}
