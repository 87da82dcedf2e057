package domain

import (
	"fmt"
	"math"
	"strings"
)

// Location is a WGS84 coordinate pair supplied by the caller.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both coordinates are finite and inside their ranges.
func (l Location) Valid() bool {
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lng) || math.IsInf(l.Lat, 0) || math.IsInf(l.Lng, 0) {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// LL renders the "lat,lng" form most providers accept.
func (l Location) LL() string {
	return fmt.Sprintf("%g,%g", l.Lat, l.Lng)
}

// Key returns a canonical string for cache keys, rounded to the given number of decimals.
func (l Location) Key(decimals int) string {
	return fmt.Sprintf("%.*f,%.*f", decimals, l.Lat, decimals, l.Lng)
}

// GeoIdentity is a human-readable place identity. Empty fields are unknown.
type GeoIdentity struct {
	Name    string `json:"name,omitempty"`
	City    string `json:"city,omitempty"`
	Region  string `json:"region,omitempty"`
	Country string `json:"country,omitempty"`
}

// Fill copies fields from other that are still empty on g.
// A field, once set, is never overwritten.
func (g *GeoIdentity) Fill(other GeoIdentity) {
	if g.Name == "" {
		g.Name = strings.TrimSpace(other.Name)
	}
	if g.City == "" {
		g.City = strings.TrimSpace(other.City)
	}
	if g.Region == "" {
		g.Region = strings.TrimSpace(other.Region)
	}
	if g.Country == "" {
		g.Country = strings.TrimSpace(other.Country)
	}
}

// Empty reports whether no field is known.
func (g GeoIdentity) Empty() bool {
	return g.Name == "" && g.City == "" && g.Region == "" && g.Country == ""
}

// Address is the administrative location a venue provider reports for a venue.
type Address struct {
	Formatted string `json:"address,omitempty"`
	City      string `json:"city,omitempty"`
	Region    string `json:"region,omitempty"`
	Country   string `json:"country,omitempty"`
}
