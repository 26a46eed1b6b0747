package market

import "context"

// Provider abstracts a market-data source (e.g. CoinGecko).
type Provider interface {
	Name() string

	// Markets returns one snapshot per requested id, in request order. Ids the
	// provider omits come back as placeholders.
	Markets(ctx context.Context, ids []string) ([]AssetSnapshot, error)

	// History returns hourly price points for the trailing 24 hours.
	History(ctx context.Context, id string) ([]PricePoint, error)
}
