package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/dashboard-aggregation/internal/common"
	"github.com/i474232898/dashboard-aggregation/internal/market"
)

// CoinGeckoMarket is one element of the /coins/markets response. Numeric
// fields are pointers so that a null from the API is distinguishable from 0.
type CoinGeckoMarket struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	CurrentPrice             *float64 `json:"current_price"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
	MarketCap                *float64 `json:"market_cap"`
	TotalVolume              *float64 `json:"total_volume"`
	CirculatingSupply        *float64 `json:"circulating_supply"`
}

// CoinGeckoMarketChart is the /coins/{id}/market_chart response.
type CoinGeckoMarketChart struct {
	Prices [][]float64 `json:"prices"`
}

// CoinGeckoProvider implements market.Provider for CoinGecko.
type CoinGeckoProvider struct {
	name         string
	baseURL      string
	apiKey       string
	historyLimit int
	client       *http.Client
	circuit      *gobreaker.CircuitBreaker
	logger       *zap.Logger
	now          func() time.Time
}

// NewCoinGeckoProvider creates a provider. apiKey is optional (demo key header).
func NewCoinGeckoProvider(client *http.Client, apiKey string, historyLimit int, logger *zap.Logger) *CoinGeckoProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if historyLimit <= 0 {
		historyLimit = market.DefaultHistoryLimit
	}
	return &CoinGeckoProvider{
		name:         "coingecko",
		baseURL:      "https://api.coingecko.com/api/v3",
		apiKey:       apiKey,
		historyLimit: historyLimit,
		client:       client,
		circuit:      newBreaker("coingecko"),
		logger:       logger,
		now:          time.Now,
	}
}

func (p *CoinGeckoProvider) Name() string {
	return p.name
}

// Markets fetches all ids in one batch. A payload that cannot be decoded is
// swallowed into placeholders; only transport failures are returned.
func (p *CoinGeckoProvider) Markets(ctx context.Context, ids []string) ([]market.AssetSnapshot, error) {
	values := url.Values{}
	values.Set("vs_currency", "usd")
	values.Set("ids", strings.Join(ids, ","))
	values.Set("order", "market_cap_desc")
	values.Set("sparkline", "false")
	values.Set("price_change_percentage", "24h")

	body, err := doRequest(ctx, p.client, p.circuit, p.baseURL+"/coins/markets?"+values.Encode(), p.header())
	if err != nil {
		return nil, err
	}

	var raw []CoinGeckoMarket
	if err := json.Unmarshal(body, &raw); err != nil {
		p.logger.Warn("coingecko markets payload has unexpected shape; using placeholders",
			zap.Error(fmt.Errorf("%w: %v", common.ErrInvalidShape, err)))
		raw = nil
	}
	return NormalizeAssetList(raw, ids, p.now()), nil
}

// History fetches the trailing 24h of hourly prices for one asset.
func (p *CoinGeckoProvider) History(ctx context.Context, id string) ([]market.PricePoint, error) {
	values := url.Values{}
	values.Set("vs_currency", "usd")
	values.Set("days", "1")
	values.Set("interval", "hourly")

	body, err := doRequest(ctx, p.client, p.circuit,
		p.baseURL+"/coins/"+url.PathEscape(id)+"/market_chart?"+values.Encode(), p.header())
	if err != nil {
		return nil, err
	}

	var raw CoinGeckoMarketChart
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidShape, err)
	}
	return NormalizePriceSeries(raw.Prices, p.historyLimit), nil
}

func (p *CoinGeckoProvider) header() http.Header {
	if p.apiKey == "" {
		return nil
	}
	h := http.Header{}
	h.Set("x-cg-demo-api-key", p.apiKey)
	return h
}

// NormalizeAssetList returns one snapshot per requested id, in request order.
// Ids missing from raw, or returned with an unusable price, become placeholders.
func NormalizeAssetList(raw []CoinGeckoMarket, ids []string, observed time.Time) []market.AssetSnapshot {
	byID := make(map[string]CoinGeckoMarket, len(raw))
	for _, m := range raw {
		if m.ID != "" {
			byID[m.ID] = m
		}
	}

	out := make([]market.AssetSnapshot, 0, len(ids))
	for _, id := range ids {
		m, ok := byID[id]
		if !ok || !validPrice(m.CurrentPrice) {
			out = append(out, Placeholder(id, observed))
			continue
		}
		out = append(out, market.AssetSnapshot{
			ID:                m.ID,
			Symbol:            strings.ToUpper(m.Symbol),
			Name:              m.Name,
			CurrentPrice:      *m.CurrentPrice,
			PriceChange24h:    deref(m.PriceChangePercentage24h),
			MarketCap:         deref(m.MarketCap),
			Volume24h:         deref(m.TotalVolume),
			CirculatingSupply: deref(m.CirculatingSupply),
			ObservedAt:        observed.UTC(),
		})
	}
	return out
}

// Placeholder is the zero-value snapshot used for an id with no usable data.
func Placeholder(id string, observed time.Time) market.AssetSnapshot {
	return market.AssetSnapshot{
		ID:          id,
		Name:        common.Capitalize(id),
		ObservedAt:  observed.UTC(),
		Placeholder: true,
	}
}

// NormalizePriceSeries converts [ms, price] pairs into time-ascending points,
// keeping the newest limit. Malformed or negative pairs are dropped.
func NormalizePriceSeries(raw [][]float64, limit int) []market.PricePoint {
	points := make([]market.PricePoint, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 || pair[0] <= 0 || !validPrice(&pair[1]) {
			continue
		}
		points = append(points, market.PricePoint{
			Timestamp: time.UnixMilli(int64(pair[0])).UTC(),
			Price:     pair[1],
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	if limit > 0 && len(points) > limit {
		points = points[len(points)-limit:]
	}
	return points
}

func validPrice(p *float64) bool {
	return p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0) && *p >= 0
}

func deref(p *float64) float64 {
	if p == nil || math.IsNaN(*p) {
		return 0
	}
	return *p
}
