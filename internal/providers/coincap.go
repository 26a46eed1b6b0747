package providers

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/dashboard-aggregation/internal/common"
	"github.com/i474232898/dashboard-aggregation/internal/market"
)

// CoinCapPricesURL is the CoinCap websocket price feed.
const CoinCapPricesURL = "wss://ws.coincap.io/prices"

// CoinCapStreamURL builds the subscription URL for a fixed asset set.
func CoinCapStreamURL(base string, ids []string) string {
	if base == "" {
		base = CoinCapPricesURL
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "assets=" + url.QueryEscape(strings.Join(ids, ","))
}

// DecodeTicks parses one CoinCap message, e.g. {"bitcoin":"64000.12"}. Values
// may be JSON strings or numbers. Entries that do not parse to a non-negative
// price are dropped. Ticks are ordered by asset id.
func DecodeTicks(payload []byte, at time.Time) ([]market.Tick, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidShape, err)
	}

	ticks := make([]market.Tick, 0, len(raw))
	for id, val := range raw {
		price, ok := parsePrice(val)
		if !ok || id == "" {
			continue
		}
		ticks = append(ticks, market.Tick{AssetID: id, Price: price, At: at.UTC()})
	}

	sort.Slice(ticks, func(i, j int) bool { return ticks[i].AssetID < ticks[j].AssetID })
	return ticks, nil
}

func parsePrice(val json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(val, &f); err != nil {
		var s string
		if err := json.Unmarshal(val, &s); err != nil {
			return 0, false
		}
		f, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
	}
	return f, validPrice(&f)
}
