package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/i474232898/dashboard-aggregation/internal/common"
	"github.com/i474232898/dashboard-aggregation/internal/market"
)

// DefaultReconnectDelay is used when reconnect is enabled without a delay.
const DefaultReconnectDelay = 5 * time.Second

// Subscriber opens a tick channel that is closed when the feed ends.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan market.Tick, error)
}

// TickSink applies ticks; store.Store implements it.
type TickSink interface {
	ApplyTick(t market.Tick) error
}

// Options configures an Ingestor.
type Options struct {
	Reconnect      bool
	ReconnectDelay time.Duration
	Logger         *zap.Logger
}

// Stats is a point-in-time view of the ingestor.
type Stats struct {
	Connected bool   `json:"connected"`
	Applied   int64  `json:"applied"`
	Ignored   int64  `json:"ignored"`
	LastError string `json:"lastError,omitempty"`
}

// Ingestor folds streamed ticks into the store.
type Ingestor struct {
	sub    Subscriber
	sink   TickSink
	opts   Options
	logger *zap.Logger

	connected atomic.Bool
	applied   atomic.Int64
	ignored   atomic.Int64
	lastErr   atomic.String
}

// NewIngestor creates an Ingestor.
func NewIngestor(sub Subscriber, sink TickSink, opts Options) *Ingestor {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Reconnect && opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	return &Ingestor{sub: sub, sink: sink, opts: opts, logger: opts.Logger}
}

// Run consumes the feed until ctx is cancelled. Without reconnect it returns
// an ErrStream error as soon as the connection is lost; polling stays
// authoritative either way.
func (i *Ingestor) Run(ctx context.Context) error {
	for {
		err := i.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}

		i.lastErr.Store(err.Error())
		i.logger.Warn("price stream unavailable; live updates stopped", zap.Error(err))
		if !i.opts.Reconnect {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(i.opts.ReconnectDelay):
			i.logger.Info("reconnecting price stream")
		}
	}
}

func (i *Ingestor) consume(ctx context.Context) error {
	ticks, err := i.sub.Subscribe(ctx)
	if err != nil {
		return err
	}

	i.connected.Store(true)
	defer i.connected.Store(false)
	i.logger.Info("price stream connected")

	for t := range ticks {
		i.apply(t)
	}
	return fmt.Errorf("%w: connection closed", common.ErrStream)
}

func (i *Ingestor) apply(t market.Tick) {
	err := i.sink.ApplyTick(t)
	if err == nil {
		i.applied.Inc()
		return
	}
	i.ignored.Inc()
	if !errors.Is(err, common.ErrInvalidShape) {
		i.logger.Debug("tick ignored", zap.String("asset", t.AssetID), zap.Error(err))
		return
	}
	i.logger.Warn("invalid tick", zap.String("asset", t.AssetID), zap.Error(err))
}

// Stats returns the ingestor's counters.
func (i *Ingestor) Stats() Stats {
	return Stats{
		Connected: i.connected.Load(),
		Applied:   i.applied.Load(),
		Ignored:   i.ignored.Load(),
		LastError: i.lastErr.Load(),
	}
}
