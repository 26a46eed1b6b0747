package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i474232898/dashboard-aggregation/internal/common"
	"github.com/i474232898/dashboard-aggregation/internal/events"
)

const (
	DefaultTTL = 8 * time.Second
	DefaultMax = 50
)

// severeConditions raise a condition change to high priority.
var severeConditions = []string{"rain", "snow", "storm", "thunderstorm"}

// Renderer delivers an alert somewhere. Failures are logged and swallowed.
type Renderer interface {
	Render(ctx context.Context, a Alert) error
}

// Options configures an Emitter. A zero DedupWindow disables deduplication.
type Options struct {
	TTL         time.Duration
	Max         int
	DedupWindow time.Duration
	Renderers   []Renderer
	Logger      *zap.Logger
}

// Emitter turns change events into alerts, in arrival order.
type Emitter struct {
	opts   Options
	logger *zap.Logger
	now    func() time.Time
	newID  func() string

	mu     sync.Mutex
	active []Alert // newest first
	recent map[string]time.Time
}

// NewEmitter creates an Emitter.
func NewEmitter(opts Options) *Emitter {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Max <= 0 {
		opts.Max = DefaultMax
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Emitter{
		opts:   opts,
		logger: opts.Logger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
		recent: make(map[string]time.Time),
	}
}

// Run consumes events until the channel is closed or ctx is cancelled.
func (e *Emitter) Run(ctx context.Context, in <-chan events.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			e.Handle(ctx, ev)
		}
	}
}

// Handle renders one event. It reports false when the event was suppressed as
// a duplicate.
func (e *Emitter) Handle(ctx context.Context, ev events.ChangeEvent) (Alert, bool) {
	now := e.now().UTC()
	a := Alert{
		ID:        e.newID(),
		Type:      typeOf(ev.Kind),
		Kind:      ev.Kind,
		SubjectID: ev.SubjectID,
		Title:     title(ev),
		Message:   ev.Message,
		Priority:  priority(ev),
		CreatedAt: now,
		ExpiresAt: now.Add(e.opts.TTL),
	}

	e.mu.Lock()
	if e.duplicate(ev, now) {
		e.mu.Unlock()
		e.logger.Debug("duplicate alert suppressed", zap.String("kind", string(ev.Kind)), zap.String("subject", ev.SubjectID))
		return Alert{}, false
	}
	e.pruneLocked(now)
	e.active = append([]Alert{a}, e.active...)
	if len(e.active) > e.opts.Max {
		e.active = e.active[:e.opts.Max]
	}
	e.mu.Unlock()

	for _, r := range e.opts.Renderers {
		if err := r.Render(ctx, a); err != nil {
			e.logger.Warn("alert render failed", zap.String("alert", a.ID), zap.Error(err))
		}
	}
	return a, true
}

// Active returns the alerts that have not expired yet, newest first.
func (e *Emitter) Active() []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pruneLocked(e.now().UTC())
	return append([]Alert{}, e.active...)
}

func (e *Emitter) duplicate(ev events.ChangeEvent, now time.Time) bool {
	if e.opts.DedupWindow <= 0 {
		return false
	}
	key := string(ev.Kind) + "\x00" + ev.SubjectID + "\x00" + ev.Message
	if last, ok := e.recent[key]; ok && now.Sub(last) < e.opts.DedupWindow {
		return true
	}
	e.recent[key] = now
	for k, ts := range e.recent {
		if now.Sub(ts) >= e.opts.DedupWindow {
			delete(e.recent, k)
		}
	}
	return false
}

func (e *Emitter) pruneLocked(now time.Time) {
	kept := e.active[:0]
	for _, a := range e.active {
		if !a.Expired(now) {
			kept = append(kept, a)
		}
	}
	e.active = kept
}

func typeOf(k events.Kind) Type {
	if k == events.KindPriceAlert {
		return TypePriceAlert
	}
	return TypeWeatherAlert
}

func title(ev events.ChangeEvent) string {
	switch ev.Kind {
	case events.KindWeatherConditionChanged:
		return "Weather change in " + ev.SubjectID
	case events.KindWeatherTempJump:
		return "Temperature alert for " + ev.SubjectID
	case events.KindPriceAlert:
		return "Price alert for " + ev.SubjectID
	default:
		return "Dashboard alert"
	}
}

func priority(ev events.ChangeEvent) Priority {
	if ev.Kind == events.KindWeatherConditionChanged && common.HasAny(ev.To, severeConditions...) {
		return PriorityHigh
	}
	return PriorityNormal
}
