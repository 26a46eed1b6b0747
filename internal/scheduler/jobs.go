package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/i474232898/dashboard-aggregation/internal/events"
	"github.com/i474232898/dashboard-aggregation/internal/market"
	"github.com/i474232898/dashboard-aggregation/internal/news"
	"github.com/i474232898/dashboard-aggregation/internal/weather"
)

// WeatherFetcher is implemented by weather.Service.
type WeatherFetcher interface {
	FetchAll(ctx context.Context, locs []weather.Location) []weather.Result
}

// MarketFetcher is implemented by market.Service.
type MarketFetcher interface {
	Fetch(ctx context.Context, ids, seed []string) market.Batch
}

// NewsFetcher is implemented by news.Service.
type NewsFetcher interface {
	FetchAll(ctx context.Context) []news.Result
}

// WeatherSink receives settled weather polls.
type WeatherSink interface {
	CommitWeather(results []weather.Result) []events.ChangeEvent
}

// MarketSink receives settled crypto polls and reports which assets still need
// a history seed.
type MarketSink interface {
	CommitAssets(batch market.Batch) []events.ChangeEvent
	AssetIDs() []string
	Unseeded() []string
}

// NewsSink receives settled news polls.
type NewsSink interface {
	CommitNews(results []news.Result)
}

// WeatherJob polls every location and commits the whole cycle at once.
func WeatherJob(f WeatherFetcher, sink WeatherSink, locs []weather.Location) Job {
	return func(ctx context.Context) error {
		results := f.FetchAll(ctx, locs)
		sink.CommitWeather(results)

		failed := 0
		var last error
		for _, r := range results {
			if r.Err != nil {
				failed++
				last = r.Err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d cities failed: %w", failed, len(results), last)
		}
		return nil
	}
}

// CryptoJob fetches the market batch plus history seeds for assets that do
// not have one yet.
func CryptoJob(f MarketFetcher, sink MarketSink) Job {
	return func(ctx context.Context) error {
		batch := f.Fetch(ctx, sink.AssetIDs(), sink.Unseeded())
		sink.CommitAssets(batch)
		return batch.Err
	}
}

// NewsJob refreshes every feed.
func NewsJob(f NewsFetcher, sink NewsSink) Job {
	return func(ctx context.Context) error {
		results := f.FetchAll(ctx)
		sink.CommitNews(results)

		var errs []error
		for _, r := range results {
			if r.Err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", r.Feed, r.Err))
			}
		}
		return errors.Join(errs...)
	}
}
