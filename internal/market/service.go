package market

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Batch is the settled outcome of one crypto poll.
type Batch struct {
	Snapshots []AssetSnapshot
	Histories map[string][]PricePoint
	Err       error
}

// Service fetches market snapshots and seed histories.
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

// Fetch issues the batch markets request for ids and one history request per
// id in seed, all concurrently, and waits for every request to settle. A failed
// history request is logged and left out of the batch.
func (s *Service) Fetch(ctx context.Context, ids, seed []string) Batch {
	if s.provider == nil {
		return Batch{Err: fmt.Errorf("no market provider configured")}
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		batch = Batch{Histories: make(map[string][]PricePoint)}
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		snaps, err := s.provider.Markets(ctx, ids)
		mu.Lock()
		batch.Snapshots, batch.Err = snaps, err
		mu.Unlock()
	}()

	for _, id := range seed {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			points, err := s.provider.History(ctx, id)
			if err != nil {
				s.logger.Warn("history fetch failed",
					zap.String("provider", s.provider.Name()),
					zap.String("asset", id),
					zap.Error(err))
				return
			}
			mu.Lock()
			batch.Histories[id] = points
			mu.Unlock()
		}(id)
	}

	wg.Wait()

	if batch.Err != nil {
		s.logger.Warn("markets fetch failed",
			zap.String("provider", s.provider.Name()),
			zap.Strings("assets", ids),
			zap.Error(batch.Err))
	}
	return batch
}
