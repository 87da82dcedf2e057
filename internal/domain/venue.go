package domain

// Candidate sources.
const (
	SourceBase         = "base"
	SourcePersonalized = "personalized"
)

// VenueCandidate is one point of interest returned by a search, prior to ranking.
// ID is the merge key and is stable across providers.
type VenueCandidate struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Categories     []string    `json:"categories"`
	Rating         *float64    `json:"rating,omitempty"`
	Score          *float64    `json:"score,omitempty"`
	Reasons        []string    `json:"reasons,omitempty"`
	Geocode        *Location   `json:"geocode,omitempty"`
	DistanceMeters *float64    `json:"distanceMeters,omitempty"`
	Address        *Address    `json:"location,omitempty"`
	Source         string      `json:"source"`
	Travel         *TravelInfo `json:"travel,omitempty"`
}

// City returns the reported city of the venue, if any.
func (v VenueCandidate) City() string {
	if v.Address == nil {
		return ""
	}
	return v.Address.City
}

// TravelSource identifies which tier produced a TravelInfo.
type TravelSource string

const (
	TravelPrimary   TravelSource = "primary"
	TravelSecondary TravelSource = "secondary"
	TravelEstimate  TravelSource = "estimate"
)

// TravelInfo is the distance and ETA from the request origin to a venue.
type TravelInfo struct {
	DistanceKm float64      `json:"distanceKm"`
	EtaMinutes float64      `json:"etaMinutes"`
	Source     TravelSource `json:"source"`
	Estimated  bool         `json:"estimated"`
}

// RankedRecommendation is a candidate with its travel info and final ranking score.
type RankedRecommendation struct {
	VenueCandidate
	FinalScore float64 `json:"finalScore"`
}

// Float returns a pointer to f, for optional numeric fields.
func Float(f float64) *float64 {
	return &f
}
