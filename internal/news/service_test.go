package news

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProvider struct {
	fail Feed
}

func (s stubProvider) Name() string { return "stub" }

func (s stubProvider) Fetch(ctx context.Context, feed Feed) ([]Item, error) {
	if feed == s.fail {
		return nil, errors.New("unavailable")
	}
	return []Item{{Title: string(feed)}}, nil
}

func TestService_FetchAll_IndependentFeeds(t *testing.T) {
	svc := NewService(stubProvider{fail: FeedAnalysis}, zap.NewNop())

	results := svc.FetchAll(context.Background())
	require.Len(t, results, 2)

	assert.Equal(t, FeedHeadlines, results[0].Feed)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "headlines", results[0].Items[0].Title)

	assert.Equal(t, FeedAnalysis, results[1].Feed)
	assert.Error(t, results[1].Err)
	assert.Empty(t, results[1].Items)
}
