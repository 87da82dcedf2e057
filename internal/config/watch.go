package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
)

// WatchLocation is a location whose context is prefetched on a schedule.
type WatchLocation struct {
	Name  string  `yaml:"name"`
	Lat   float64 `yaml:"lat"`
	Lng   float64 `yaml:"lng"`
	Query string  `yaml:"query"`
}

func (w WatchLocation) Location() domain.Location {
	return domain.Location{Lat: w.Lat, Lng: w.Lng}
}

type watchFile struct {
	Locations []WatchLocation `yaml:"locations"`
}

// LoadWatchFile reads the prefetch locations from a YAML file:
//
//	locations:
//	  - name: office
//	    lat: 40.7128
//	    lng: -74.006
//	    query: coffee
func LoadWatchFile(path string) ([]WatchLocation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watch file: %w", err)
	}
	var wf watchFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse watch file %s: %w", path, err)
	}
	for i, l := range wf.Locations {
		if !l.Location().Valid() {
			return nil, fmt.Errorf("watch file %s: location %d (%q): %w", path, i, l.Name, domain.ErrInvalidParameter)
		}
	}
	return wf.Locations, nil
}
