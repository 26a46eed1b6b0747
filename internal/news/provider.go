package news

import "context"

// Provider abstracts a news source (e.g. newsdata.io).
type Provider interface {
	Name() string
	Fetch(ctx context.Context, feed Feed) ([]Item, error)
}
