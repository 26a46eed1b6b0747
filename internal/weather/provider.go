package weather

import (
	"context"
)

// Provider abstracts a weather data source (e.g. OpenWeatherMap).
type Provider interface {
	Name() string
	Current(ctx context.Context, loc Location) (Snapshot, error)
	Forecast(ctx context.Context, loc Location) ([]ForecastDay, error)
}

// Resolver fills in coordinates for a location that only has a city name.
type Resolver interface {
	Resolve(loc Location) (Location, error)
}
