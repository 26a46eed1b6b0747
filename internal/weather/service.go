package weather

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Service fetches current conditions and forecasts for a set of cities.
type Service struct {
	provider Provider
	resolver Resolver
	logger   *zap.Logger

	mu       sync.Mutex
	resolved map[string]Location
}

// NewService creates a new Service. resolver may be nil.
func NewService(provider Provider, resolver Resolver, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		provider: provider,
		resolver: resolver,
		logger:   logger,
		resolved: make(map[string]Location),
	}
}

// FetchAll polls every location concurrently and waits for all of them to
// settle. Results are returned in the order of locs; a failed city carries Err
// and never affects the others.
func (s *Service) FetchAll(ctx context.Context, locs []Location) []Result {
	results := make([]Result, len(locs))

	var wg sync.WaitGroup
	for i, loc := range locs {
		wg.Add(1)
		go func(i int, loc Location) {
			defer wg.Done()
			results[i] = s.FetchOne(ctx, loc)
		}(i, loc)
	}
	wg.Wait()

	return results
}

// FetchOne fetches current conditions and the forecast for loc in parallel.
func (s *Service) FetchOne(ctx context.Context, loc Location) Result {
	res := Result{City: loc.Key()}

	if s.provider == nil {
		res.Err = fmt.Errorf("no weather provider configured")
		return res
	}

	loc = s.resolve(loc)

	var (
		wg          sync.WaitGroup
		current     Snapshot
		forecast    []ForecastDay
		currentErr  error
		forecastErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		current, currentErr = s.provider.Current(ctx, loc)
	}()
	go func() {
		defer wg.Done()
		forecast, forecastErr = s.provider.Forecast(ctx, loc)
	}()
	wg.Wait()

	switch {
	case currentErr != nil:
		res.Err = currentErr
	case forecastErr != nil:
		res.Err = forecastErr
	}
	if res.Err != nil {
		s.logger.Warn("weather fetch failed",
			zap.String("provider", s.provider.Name()),
			zap.String("city", loc.Key()),
			zap.Error(res.Err))
		return res
	}

	current.City = loc.Key()
	res.Snapshot = current
	res.Forecast = forecast
	return res
}

// resolve looks up coordinates once per city and caches the answer. Failures
// fall back to querying by name.
func (s *Service) resolve(loc Location) Location {
	if s.resolver == nil || loc.HasCoordinates() {
		return loc
	}

	s.mu.Lock()
	cached, ok := s.resolved[loc.Key()]
	s.mu.Unlock()
	if ok {
		return cached
	}

	out, err := s.resolver.Resolve(loc)
	if err != nil {
		s.logger.Info("geocoding failed; querying by city name",
			zap.String("city", loc.Key()), zap.Error(err))
		return loc
	}

	s.mu.Lock()
	s.resolved[loc.Key()] = out
	s.mu.Unlock()
	return out
}
