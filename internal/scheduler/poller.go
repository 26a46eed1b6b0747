package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Domain names an independently polled data source.
type Domain string

const (
	DomainWeather Domain = "weather"
	DomainCrypto  Domain = "crypto"
	DomainNews    Domain = "news"
)

// State is a poller's position in Idle -> Fetching -> Idle.
type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
)

// DefaultTimeout bounds a single poll when none is configured.
const DefaultTimeout = 30 * time.Second

// Job fetches one domain and commits the outcome. The returned error is kept
// as the poller's last error.
type Job func(ctx context.Context) error

// Status is a point-in-time view of a poller.
type Status struct {
	Domain      Domain        `json:"domain"`
	State       State         `json:"state"`
	Interval    time.Duration `json:"interval"`
	Runs        int64         `json:"runs"`
	Dropped     int64         `json:"dropped"`
	LastRun     time.Time     `json:"lastRun,omitempty"`
	LastSuccess time.Time     `json:"lastSuccess,omitempty"`
	LastError   string        `json:"lastError,omitempty"`
}

// Poller guards one domain so that at most one fetch is in flight. A tick that
// arrives while a fetch is running is dropped, not queued.
type Poller struct {
	domain   Domain
	interval time.Duration
	timeout  time.Duration
	job      Job
	logger   *zap.Logger

	inFlight atomic.Bool
	runs     atomic.Int64
	dropped  atomic.Int64

	mu          sync.Mutex
	lastRun     time.Time
	lastSuccess time.Time
	lastErr     string
}

func newPoller(domain Domain, interval, timeout time.Duration, job Job, logger *zap.Logger) *Poller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Poller{
		domain:   domain,
		interval: interval,
		timeout:  timeout,
		job:      job,
		logger:   logger,
	}
}

// acquire moves the poller to Fetching. It fails, and counts a drop, when a
// fetch is already in flight.
func (p *Poller) acquire() bool {
	if p.inFlight.CompareAndSwap(false, true) {
		return true
	}
	p.dropped.Inc()
	p.logger.Debug("poll dropped; previous fetch still in flight")
	return false
}

// execute runs the job under the poll timeout and returns to Idle. The caller
// must hold the in-flight guard.
func (p *Poller) execute(parent context.Context) {
	defer p.inFlight.Store(false)

	ctx, cancel := context.WithTimeout(parent, p.timeout)
	defer cancel()

	start := time.Now()
	p.runs.Inc()
	p.logger.Debug("poll started")

	err := p.job(ctx)

	p.mu.Lock()
	p.lastRun = start.UTC()
	if err != nil {
		p.lastErr = err.Error()
	} else {
		p.lastErr = ""
		p.lastSuccess = start.UTC()
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("poll finished with errors", zap.Duration("took", time.Since(start)), zap.Error(err))
		return
	}
	p.logger.Info("poll completed", zap.Duration("took", time.Since(start)))
}

// Status returns the poller's current status.
func (p *Poller) Status() Status {
	state := StateIdle
	if p.inFlight.Load() {
		state = StateFetching
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return Status{
		Domain:      p.domain,
		State:       state,
		Interval:    p.interval,
		Runs:        p.runs.Load(),
		Dropped:     p.dropped.Load(),
		LastRun:     p.lastRun,
		LastSuccess: p.lastSuccess,
		LastError:   p.lastErr,
	}
}
