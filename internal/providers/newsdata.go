package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/dashboard-aggregation/internal/common"
	"github.com/i474232898/dashboard-aggregation/internal/news"
)

const newsDataTimeLayout = "2006-01-02 15:04:05"

// NewsDataArticle is one element of newsdata.io's "results" array.
type NewsDataArticle struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Link        string   `json:"link"`
	PubDate     string   `json:"pubDate"`
	SourceID    string   `json:"source_id"`
	Category    []string `json:"category"`
}

// NewsDataResponse is the /api/1/news response.
type NewsDataResponse struct {
	Status       string            `json:"status"`
	TotalResults int               `json:"totalResults"`
	Results      []NewsDataArticle `json:"results"`
}

// newsQuery holds the request parameters for one feed.
type newsQuery struct {
	q        string
	category string
	size     int
}

var newsQueries = map[news.Feed]newsQuery{
	news.FeedHeadlines: {
		q:        "cryptocurrency OR bitcoin OR ethereum",
		category: "business,technology",
		size:     8,
	},
	news.FeedAnalysis: {
		q:        "cryptocurrency market analysis OR crypto market forecast",
		category: "business",
		size:     3,
	},
}

// NewsDataProvider implements news.Provider for newsdata.io.
type NewsDataProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewNewsDataProvider(client *http.Client, apiKey string) *NewsDataProvider {
	return &NewsDataProvider{
		name:    "newsdata",
		apiKey:  apiKey,
		baseURL: "https://newsdata.io/api/1/news",
		client:  client,
		circuit: newBreaker("newsdata"),
	}
}

func (p *NewsDataProvider) Name() string {
	return p.name
}

// Fetch returns the articles for feed. Transport failures are errors; a
// malformed payload is an empty list.
func (p *NewsDataProvider) Fetch(ctx context.Context, feed news.Feed) ([]news.Item, error) {
	query, ok := newsQueries[feed]
	if !ok {
		return nil, fmt.Errorf("unknown news feed %q", feed)
	}
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: newsdata api key is not configured", common.ErrNetwork)
	}

	values := url.Values{}
	values.Set("apikey", p.apiKey)
	values.Set("q", query.q)
	values.Set("language", "en")
	values.Set("category", query.category)
	values.Set("size", strconv.Itoa(query.size))

	body, err := doRequest(ctx, p.client, p.circuit, p.baseURL+"?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return NormalizeNews(body), nil
}

// NormalizeNews maps a newsdata.io payload. It never fails: anything that does
// not decode yields an empty list, and missing fields get display defaults.
func NormalizeNews(body []byte) []news.Item {
	var raw NewsDataResponse
	if err := json.Unmarshal(body, &raw); err != nil || raw.Results == nil {
		return []news.Item{}
	}

	items := make([]news.Item, 0, len(raw.Results))
	for _, a := range raw.Results {
		items = append(items, news.Item{
			Title:       orDefault(a.Title, "No title available"),
			Description: orDefault(a.Description, "No description available"),
			Link:        orDefault(a.Link, "#"),
			PubDate:     parsePubDate(a.PubDate),
			Source:      a.SourceID,
			Category:    a.Category,
		})
	}
	return items
}

func parsePubDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(newsDataTimeLayout, s); err == nil {
		return ts.UTC()
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC()
	}
	return time.Time{}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
