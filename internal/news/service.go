package news

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Service refreshes every feed concurrently.
type Service struct {
	provider Provider
	logger   *zap.Logger
}

// NewService creates a new Service.
func NewService(provider Provider, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{provider: provider, logger: logger}
}

// FetchAll fetches all feeds and waits for every request to settle. Results
// are in Feeds order.
func (s *Service) FetchAll(ctx context.Context) []Result {
	results := make([]Result, len(Feeds))

	var wg sync.WaitGroup
	for i, feed := range Feeds {
		wg.Add(1)
		go func(i int, feed Feed) {
			defer wg.Done()
			results[i] = s.fetch(ctx, feed)
		}(i, feed)
	}
	wg.Wait()

	return results
}

func (s *Service) fetch(ctx context.Context, feed Feed) Result {
	if s.provider == nil {
		return Result{Feed: feed, Err: fmt.Errorf("no news provider configured")}
	}

	items, err := s.provider.Fetch(ctx, feed)
	if err != nil {
		s.logger.Warn("news fetch failed",
			zap.String("provider", s.provider.Name()),
			zap.String("feed", string(feed)),
			zap.Error(err))
		return Result{Feed: feed, Err: err}
	}
	return Result{Feed: feed, Items: items}
}
