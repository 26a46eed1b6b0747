package weather

import (
	"time"
)

// ForecastDays is the number of daily entries kept per city.
const ForecastDays = 5

// Location is a tracked city. Coordinates are optional; when present the
// provider is queried by lat/lon, otherwise by city name.
type Location struct {
	City    string   `json:"city" yaml:"city" validate:"required"`
	Country string   `json:"country,omitempty" yaml:"country"`
	Lat     *float64 `json:"lat,omitempty" yaml:"lat"`
	Lon     *float64 `json:"lon,omitempty" yaml:"lon"`
}

// Key returns the slot key for this location. City names are unique within a
// watchlist.
func (l Location) Key() string {
	return l.City
}

// HasCoordinates reports whether both latitude and longitude are set.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// Snapshot is the normalized current weather for one city.
type Snapshot struct {
	City       string    `json:"city"`
	Temp       float64   `json:"temp"`       // °C
	Humidity   float64   `json:"humidity"`   // percent
	Conditions string    `json:"conditions"` // provider label, e.g. "Clear", "Rain"
	WindSpeed  float64   `json:"windSpeed"`  // km/h
	Pressure   float64   `json:"pressure"`   // hPa
	Icon       string    `json:"icon"`
	ObservedAt time.Time `json:"observedAt"` // always UTC
}

// ForecastDay is one sampled day of the multi-day forecast.
type ForecastDay struct {
	Date       string  `json:"date"` // YYYY-MM-DD, UTC
	Temp       float64 `json:"temp"`
	Conditions string  `json:"conditions"`
	Icon       string  `json:"icon"`
}

// Result is the outcome of polling a single city. Err is set when either the
// current conditions or the forecast could not be fetched.
type Result struct {
	City     string
	Snapshot Snapshot
	Forecast []ForecastDay
	Err      error
}
