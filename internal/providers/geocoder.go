package providers

import (
	"fmt"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/dashboard-aggregation/internal/weather"
)

// Geocoder resolves city names to coordinates through the Google Geocoding API.
type Geocoder struct {
	lookup func(geocoder.Address) (geocoder.Location, error)
}

// NewGeocoder configures the package-level API key used by kelvins/geocoder.
func NewGeocoder(apiKey string) *Geocoder {
	geocoder.ApiKey = apiKey
	return &Geocoder{lookup: geocoder.Geocoding}
}

// Resolve returns loc with Lat/Lon filled in. Locations that already carry
// coordinates are returned unchanged.
func (g *Geocoder) Resolve(loc weather.Location) (weather.Location, error) {
	if loc.HasCoordinates() {
		return loc, nil
	}

	found, err := g.lookup(geocoder.Address{City: loc.City, Country: loc.Country})
	if err != nil {
		return loc, fmt.Errorf("geocode %s: %w", loc.City, err)
	}

	lat, lon := found.Latitude, found.Longitude
	loc.Lat, loc.Lon = &lat, &lon
	return loc, nil
}
