package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// ErrUnknownDomain is returned by Trigger for a domain with no poller.
var ErrUnknownDomain = errors.New("unknown domain")

// Scheduler runs one Poller per data domain on independent gocron intervals.
type Scheduler struct {
	cron    *gocron.Scheduler
	pollers map[Domain]*Poller
	order   []Domain
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// New creates a new Scheduler.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    gocron.NewScheduler(time.UTC),
		pollers: make(map[Domain]*Poller),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register adds a poller for domain. An interval of 0 disables the periodic
// job; the domain then runs once at start and on Trigger only.
func (s *Scheduler) Register(domain Domain, interval, timeout time.Duration, job Job) *Poller {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := newPoller(domain, interval, timeout, job, s.logger.With(zap.String("domain", string(domain))))
	if _, exists := s.pollers[domain]; !exists {
		s.order = append(s.order, domain)
	}
	s.pollers[domain] = p
	return p
}

// Start schedules the periodic jobs, starts the underlying scheduler and runs
// every poller once.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if len(s.pollers) == 0 {
		s.logger.Info("scheduler: no pollers registered; nothing to schedule")
		return nil
	}

	for _, d := range s.order {
		p := s.pollers[d]
		if p.interval <= 0 {
			continue
		}
		// gocron runs a new job immediately, which covers the initial poll.
		if _, err := s.cron.Every(p.interval).Do(s.fire, p); err != nil {
			return fmt.Errorf("schedule %s: %w", d, err)
		}
	}

	s.cron.StartAsync()
	s.started = true

	for _, d := range s.order {
		if p := s.pollers[d]; p.interval <= 0 {
			s.trigger(p)
		}
	}
	return nil
}

// Trigger starts an on-demand fetch for domain. It reports false when a fetch
// for that domain is already in flight and the request was dropped.
func (s *Scheduler) Trigger(domain Domain) (bool, error) {
	s.mu.Lock()
	p, ok := s.pollers[domain]
	s.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
	}
	if s.ctx.Err() != nil {
		return false, nil
	}
	return s.trigger(p), nil
}

// Status returns every poller's status in registration order.
func (s *Scheduler) Status() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Status, 0, len(s.order))
	for _, d := range s.order {
		out = append(out, s.pollers[d].Status())
	}
	return out
}

// Stop cancels in-flight fetches, stops the periodic jobs and waits for every
// fetch to return. Cancel comes first: gocron's Stop blocks on running jobs.
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
	s.wg.Wait()
}

func (s *Scheduler) trigger(p *Poller) bool {
	if !p.acquire() {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		p.execute(s.ctx)
	}()
	return true
}

// fire is the gocron job body.
func (s *Scheduler) fire(p *Poller) {
	if s.ctx.Err() != nil || !p.acquire() {
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	p.execute(s.ctx)
}
