package news

import "time"

// Feed names one of the independently refreshed news lists.
type Feed string

const (
	FeedHeadlines Feed = "headlines"
	FeedAnalysis  Feed = "analysis"
)

// Feeds lists every feed in display order.
var Feeds = []Feed{FeedHeadlines, FeedAnalysis}

// Item is one normalized article.
type Item struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Link        string    `json:"link"`
	PubDate     time.Time `json:"pubDate"`
	Source      string    `json:"source"`
	Category    []string  `json:"category,omitempty"`
}

// Result is the outcome of fetching one feed.
type Result struct {
	Feed  Feed
	Items []Item
	Err   error
}
