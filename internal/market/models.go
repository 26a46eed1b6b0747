package market

import "time"

// DefaultHistoryLimit is the number of price points kept per asset.
const DefaultHistoryLimit = 24

// Asset is a tracked cryptocurrency.
type Asset struct {
	ID     string `json:"id" yaml:"id" validate:"required"`
	Symbol string `json:"symbol" yaml:"symbol"`
	Name   string `json:"name" yaml:"name"`
}

// AssetSnapshot is the latest known market state of one asset. All amounts are
// USD; PriceChange24h is a percentage.
type AssetSnapshot struct {
	ID                string    `json:"id"`
	Symbol            string    `json:"symbol"`
	Name              string    `json:"name"`
	CurrentPrice      float64   `json:"currentPrice"`
	PriceChange24h    float64   `json:"priceChange24h"`
	MarketCap         float64   `json:"marketCap"`
	Volume24h         float64   `json:"volume24h"`
	CirculatingSupply float64   `json:"circulatingSupply"`
	ObservedAt        time.Time `json:"observedAt"`

	// Placeholder marks a zero-value snapshot standing in for an id the
	// provider did not return.
	Placeholder bool `json:"placeholder,omitempty"`
}

// PricePoint is one sample of an asset's price history.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// Tick is a single pushed price update.
type Tick struct {
	AssetID string
	Price   float64
	At      time.Time
}
