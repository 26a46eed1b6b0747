package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/i474232898/dashboard-aggregation/internal/common"
	"github.com/i474232898/dashboard-aggregation/internal/market"
	"github.com/i474232898/dashboard-aggregation/internal/providers"
)

// DefaultBuffer is the tick channel capacity when none is configured.
const DefaultBuffer = 256

// Client is a CoinCap price feed connection.
type Client struct {
	url    string
	buffer int
	dialer *websocket.Dialer
	logger *zap.Logger
	now    func() time.Time

	dropped atomic.Int64

	mu  sync.Mutex
	err error
}

// NewClient creates a client for url, a fully built subscription URL.
func NewClient(url string, buffer int, logger *zap.Logger) *Client {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:    url,
		buffer: buffer,
		dialer: websocket.DefaultDialer,
		logger: logger,
		now:    time.Now,
	}
}

// Subscribe dials the feed and returns a channel of decoded ticks. The channel
// is closed when the connection fails or ctx is cancelled; Err then reports
// why. Ticks that do not fit in the buffer are dropped.
func (c *Client) Subscribe(ctx context.Context) (<-chan market.Tick, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", common.ErrStream, c.url, err)
	}
	c.setErr(nil)

	ticks := make(chan market.Tick, c.buffer)
	done := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = conn.Close()
	}()

	go func() {
		defer close(ticks)
		defer close(done)
		c.readLoop(ctx, conn, ticks)
	}()

	return ticks, nil
}

// Err returns the error that ended the last subscription, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Dropped returns the number of ticks discarded because the buffer was full.
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- market.Tick) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.setErr(fmt.Errorf("%w: read: %v", common.ErrStream, err))
			c.logger.Warn("price stream read failed", zap.Error(err))
			return
		}

		ticks, err := providers.DecodeTicks(data, c.now())
		if err != nil {
			c.logger.Debug("skipping undecodable stream message", zap.Error(err))
			continue
		}

		for _, t := range ticks {
			select {
			case out <- t:
			default:
				c.dropped.Inc()
				c.logger.Warn("tick buffer full, dropping tick", zap.String("asset", t.AssetID))
			}
		}
	}
}

func (c *Client) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}
