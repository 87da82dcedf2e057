package httpapi

import (
	"strings"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/pipeline"
)

// location builds a Location from the request coordinates. Both are pointers
// so that a missing value is told apart from zero.
func location(lat, lng *float64) *domain.Location {
	if lat == nil || lng == nil {
		return nil
	}
	return &domain.Location{Lat: *lat, Lng: *lng}
}

// coords is the nested {"location": {"lat", "lng"}} form of a JSON body.
type coords struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// apply copies the nested coordinates over the flat ones when present.
func (c *coords) apply(lat, lng **float64) {
	if c == nil {
		return
	}
	if c.Lat != nil {
		*lat = c.Lat
	}
	if c.Lng != nil {
		*lng = c.Lng
	}
}

type recommendRequest struct {
	Location   *coords  `json:"location" query:"-" validate:"-"`
	Lat        *float64 `json:"lat" query:"lat" validate:"required,latitude"`
	Lng        *float64 `json:"lng" query:"lng" validate:"required,longitude"`
	UserID     string   `json:"userId" query:"userId" validate:"max=128"`
	Query      string   `json:"query" query:"query" validate:"max=256"`
	Categories string   `json:"categories" query:"categories"`
	Radius     int      `json:"radius" query:"radius" validate:"omitempty,min=1,max=100000"`
	Limit      int      `json:"limit" query:"limit" validate:"omitempty,min=1,max=50"`
}

func (r *recommendRequest) normalize() { r.Location.apply(&r.Lat, &r.Lng) }

func (r recommendRequest) toPipeline() pipeline.RecommendRequest {
	var cats []string
	for _, c := range strings.Split(r.Categories, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cats = append(cats, c)
		}
	}
	return pipeline.RecommendRequest{
		Location:     location(r.Lat, r.Lng),
		UserID:       r.UserID,
		Query:        r.Query,
		Categories:   cats,
		RadiusMeters: r.Radius,
		Limit:        r.Limit,
	}
}

type contextRequest struct {
	Location    *coords  `json:"location" query:"-" validate:"-"`
	Lat         *float64 `json:"lat" query:"lat" validate:"required,latitude"`
	Lng         *float64 `json:"lng" query:"lng" validate:"required,longitude"`
	Query       string   `json:"query" query:"query" validate:"max=256"`
	AccessToken string   `json:"accessToken" query:"-"`
}

func (r *contextRequest) normalize() { r.Location.apply(&r.Lat, &r.Lng) }

type suggestRequest struct {
	Lat    *float64 `json:"lat" query:"lat" validate:"required,latitude"`
	Lng    *float64 `json:"lng" query:"lng" validate:"required,longitude"`
	UserID string   `json:"userId" query:"userId" validate:"max=128"`
}
