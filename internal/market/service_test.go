package market

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProvider struct {
	marketsErr  error
	historyFail map[string]bool
}

func (s stubProvider) Name() string { return "stub" }

func (s stubProvider) Markets(ctx context.Context, ids []string) ([]AssetSnapshot, error) {
	if s.marketsErr != nil {
		return nil, s.marketsErr
	}
	out := make([]AssetSnapshot, len(ids))
	for i, id := range ids {
		out[i] = AssetSnapshot{ID: id, CurrentPrice: 1}
	}
	return out, nil
}

func (s stubProvider) History(ctx context.Context, id string) ([]PricePoint, error) {
	if s.historyFail[id] {
		return nil, errors.New("history down")
	}
	return []PricePoint{point(0, 1)}, nil
}

func TestService_Fetch(t *testing.T) {
	svc := NewService(stubProvider{historyFail: map[string]bool{"solana": true}}, zap.NewNop())

	batch := svc.Fetch(context.Background(),
		[]string{"bitcoin", "ethereum", "solana"},
		[]string{"bitcoin", "solana"})

	require.NoError(t, batch.Err)
	assert.Len(t, batch.Snapshots, 3)
	assert.Contains(t, batch.Histories, "bitcoin")
	assert.NotContains(t, batch.Histories, "solana")
	assert.NotContains(t, batch.Histories, "ethereum")
}

func TestService_Fetch_MarketsError(t *testing.T) {
	svc := NewService(stubProvider{marketsErr: errors.New("down")}, nil)

	batch := svc.Fetch(context.Background(), []string{"bitcoin"}, nil)
	assert.Error(t, batch.Err)
	assert.Empty(t, batch.Snapshots)
}
