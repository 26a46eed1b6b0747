package store

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/dashboard-aggregation/internal/common"
	"github.com/i474232898/dashboard-aggregation/internal/events"
	"github.com/i474232898/dashboard-aggregation/internal/market"
	"github.com/i474232898/dashboard-aggregation/internal/news"
	"github.com/i474232898/dashboard-aggregation/internal/weather"
)

var (
	// ErrNotFound is returned when a city, asset or feed is not tracked.
	ErrNotFound = errors.New("not found")

	// ErrUntracked is returned by ApplyTick for an asset outside the watchlist.
	ErrUntracked = errors.New("untracked asset")

	// ErrClosed is returned by ApplyTick after Close.
	ErrClosed = errors.New("store closed")
)

// Status is the lifecycle of one entity slot.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// WeatherSlot is the state of one tracked city. Snapshot is nil until the
// first successful poll and after a failed one.
type WeatherSlot struct {
	City      string                `json:"city"`
	Status    Status                `json:"status"`
	Snapshot  *weather.Snapshot     `json:"snapshot,omitempty"`
	Forecast  []weather.ForecastDay `json:"forecast,omitempty"`
	Error     string                `json:"error,omitempty"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// AssetSlot is the state of one tracked asset. A failed poll keeps the last
// snapshot and only flips the status.
type AssetSlot struct {
	ID        string               `json:"id"`
	Status    Status               `json:"status"`
	Snapshot  market.AssetSnapshot `json:"snapshot"`
	Seeded    bool                 `json:"seeded"`
	Error     string               `json:"error,omitempty"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// NewsSlot is the state of one news feed.
type NewsSlot struct {
	Feed      news.Feed   `json:"feed"`
	Status    Status      `json:"status"`
	Items     []news.Item `json:"items"`
	Error     string      `json:"error,omitempty"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// PriceRule decides whether an asset update should raise a price alert. prev
// is the zero value when the asset had no snapshot yet.
type PriceRule func(prev, next market.AssetSnapshot) (events.ChangeEvent, bool)

// Options configures a Store.
type Options struct {
	HistoryLimit int
	Publisher    events.Publisher
	PriceRule    PriceRule
	Logger       *zap.Logger
}

type assetEntry struct {
	asset   market.Asset
	slot    AssetSlot
	history *market.History
}

// Store is the single owner of all dashboard state. Every mutation runs in one
// critical section, so readers never see a half-applied update. Change events
// are published inside that section and therefore in commit order.
type Store struct {
	mu sync.RWMutex

	cities  []string
	weather map[string]*WeatherSlot

	assetIDs []string
	assets   map[string]*assetEntry

	news map[news.Feed]*NewsSlot

	publisher events.Publisher
	rule      PriceRule
	logger    *zap.Logger
	now       func() time.Time
	closed    bool
}

// New creates a Store tracking the given cities and assets. Every slot starts
// in StatusLoading.
func New(locs []weather.Location, assets []market.Asset, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.PublisherFunc(func(events.ChangeEvent) {})
	}

	s := &Store{
		weather:   make(map[string]*WeatherSlot, len(locs)),
		assets:    make(map[string]*assetEntry, len(assets)),
		news:      make(map[news.Feed]*NewsSlot, len(news.Feeds)),
		publisher: opts.Publisher,
		rule:      opts.PriceRule,
		logger:    opts.Logger,
		now:       time.Now,
	}

	for _, loc := range locs {
		key := loc.Key()
		if _, dup := s.weather[key]; dup {
			continue
		}
		s.cities = append(s.cities, key)
		s.weather[key] = &WeatherSlot{City: key, Status: StatusLoading}
	}

	for _, a := range assets {
		if _, dup := s.assets[a.ID]; dup {
			continue
		}
		s.assetIDs = append(s.assetIDs, a.ID)
		s.assets[a.ID] = &assetEntry{
			asset:   a,
			slot:    AssetSlot{ID: a.ID, Status: StatusLoading, Snapshot: placeholder(a)},
			history: market.NewHistory(opts.HistoryLimit),
		}
	}

	for _, f := range news.Feeds {
		s.news[f] = &NewsSlot{Feed: f, Status: StatusLoading, Items: []news.Item{}}
	}

	return s
}

// Close stops the store from accepting further writes. Results from fetches
// still in flight are dropped.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// CommitWeather applies one settled weather poll. Successful cities replace
// their snapshot and forecast; failed cities are marked error and lose their
// prior snapshot. Emitted change events are also returned.
func (s *Store) CommitWeather(results []weather.Result) []events.ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	now := s.now().UTC()
	var emitted []events.ChangeEvent

	for _, r := range results {
		slot, ok := s.weather[r.City]
		if !ok {
			s.logger.Debug("ignoring weather result for untracked city", zap.String("city", r.City))
			continue
		}

		if r.Err != nil {
			slot.Status = StatusError
			slot.Error = r.Err.Error()
			slot.Snapshot = nil
			slot.Forecast = nil
			slot.UpdatedAt = now
			continue
		}

		next := r.Snapshot
		next.City = r.City
		if slot.Status == StatusReady && slot.Snapshot != nil {
			emitted = append(emitted, weather.DetectChanges(*slot.Snapshot, next, now)...)
		}

		slot.Status = StatusReady
		slot.Error = ""
		slot.Snapshot = &next
		slot.Forecast = append([]weather.ForecastDay(nil), r.Forecast...)
		slot.UpdatedAt = now
	}

	s.publish(emitted)
	return emitted
}

// CommitAssets applies one settled crypto poll. A failed batch marks every
// asset error but keeps snapshots and histories. Placeholders take their
// symbol and name from the watchlist.
func (s *Store) CommitAssets(batch market.Batch) []events.ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	now := s.now().UTC()
	var emitted []events.ChangeEvent

	if batch.Err != nil {
		for _, id := range s.assetIDs {
			e := s.assets[id]
			e.slot.Status = StatusError
			e.slot.Error = batch.Err.Error()
			e.slot.UpdatedAt = now
		}
	} else {
		for _, snap := range batch.Snapshots {
			e, ok := s.assets[snap.ID]
			if !ok {
				continue
			}
			if snap.Placeholder {
				p := placeholder(e.asset)
				p.ObservedAt = snap.ObservedAt
				snap = p
			}
			if ev, ok := s.checkPrice(e.slot.Snapshot, snap); ok {
				emitted = append(emitted, ev)
			}
			e.slot.Snapshot = snap
			e.slot.Status = StatusReady
			e.slot.Error = ""
			e.slot.UpdatedAt = now
		}
	}

	for id, points := range batch.Histories {
		e, ok := s.assets[id]
		if !ok {
			continue
		}
		e.history.Seed(points)
		e.slot.Seeded = true
	}

	s.publish(emitted)
	return emitted
}

// ApplyTick patches the price of one asset and appends the tick to its
// history. observedAt never moves backwards.
func (s *Store) ApplyTick(t market.Tick) error {
	if math.IsNaN(t.Price) || math.IsInf(t.Price, 0) || t.Price < 0 {
		return fmt.Errorf("%w: tick price %v for %s", common.ErrInvalidShape, t.Price, t.AssetID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	e, ok := s.assets[t.AssetID]
	if !ok {
		return ErrUntracked
	}

	at := t.At.UTC()
	next := e.slot.Snapshot
	next.CurrentPrice = t.Price
	next.Placeholder = false
	if at.After(next.ObservedAt) {
		next.ObservedAt = at
	}

	ev, alert := s.checkPrice(e.slot.Snapshot, next)

	// A live price supersedes a failed poll.
	e.slot.Snapshot = next
	e.slot.Status = StatusReady
	e.slot.Error = ""
	e.slot.UpdatedAt = s.now().UTC()
	e.history.Append(market.PricePoint{Timestamp: at, Price: t.Price})

	if alert {
		s.publisher.Publish(ev)
	}
	return nil
}

// CommitNews applies one settled news poll; each feed is replaced or marked
// error on its own.
func (s *Store) CommitNews(results []news.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	now := s.now().UTC()
	for _, r := range results {
		slot, ok := s.news[r.Feed]
		if !ok {
			continue
		}
		if r.Err != nil {
			slot.Status = StatusError
			slot.Error = r.Err.Error()
			slot.UpdatedAt = now
			continue
		}
		items := r.Items
		if items == nil {
			items = []news.Item{}
		}
		slot.Status = StatusReady
		slot.Error = ""
		slot.Items = append([]news.Item{}, items...)
		slot.UpdatedAt = now
	}
}

// Weather returns every city slot in watchlist order.
func (s *Store) Weather() []WeatherSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]WeatherSlot, 0, len(s.cities))
	for _, c := range s.cities {
		out = append(out, copyWeather(s.weather[c]))
	}
	return out
}

// WeatherFor returns the slot for one city.
func (s *Store) WeatherFor(city string) (WeatherSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.weather[city]
	if !ok {
		return WeatherSlot{}, ErrNotFound
	}
	return copyWeather(slot), nil
}

// Assets returns every asset slot in watchlist order.
func (s *Store) Assets() []AssetSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]AssetSlot, 0, len(s.assetIDs))
	for _, id := range s.assetIDs {
		out = append(out, s.assets[id].slot)
	}
	return out
}

// Asset returns the slot for one asset.
func (s *Store) Asset(id string) (AssetSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.assets[id]
	if !ok {
		return AssetSlot{}, ErrNotFound
	}
	return e.slot, nil
}

// History returns the rolling price history of one asset, oldest first.
func (s *Store) History(id string) ([]market.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.assets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.history.Points(), nil
}

// Unseeded returns the tracked assets whose history has not been seeded yet.
func (s *Store) Unseeded() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, id := range s.assetIDs {
		if !s.assets[id].slot.Seeded {
			out = append(out, id)
		}
	}
	return out
}

// AssetIDs returns the tracked asset ids in watchlist order.
func (s *Store) AssetIDs() []string {
	return append([]string(nil), s.assetIDs...)
}

// News returns the slot for one feed.
func (s *Store) News(feed news.Feed) (NewsSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.news[feed]
	if !ok {
		return NewsSlot{}, ErrNotFound
	}
	out := *slot
	out.Items = append([]news.Item{}, slot.Items...)
	return out, nil
}

func (s *Store) checkPrice(prev, next market.AssetSnapshot) (events.ChangeEvent, bool) {
	if s.rule == nil {
		return events.ChangeEvent{}, false
	}
	ev, ok := s.rule(prev, next)
	if !ok {
		return events.ChangeEvent{}, false
	}
	if ev.Kind == "" {
		ev.Kind = events.KindPriceAlert
	}
	if ev.SubjectID == "" {
		ev.SubjectID = next.ID
	}
	if ev.At.IsZero() {
		ev.At = s.now().UTC()
	}
	return ev, true
}

func (s *Store) publish(evs []events.ChangeEvent) {
	for _, ev := range evs {
		s.publisher.Publish(ev)
	}
}

func placeholder(a market.Asset) market.AssetSnapshot {
	name := a.Name
	if name == "" {
		name = common.Capitalize(a.ID)
	}
	return market.AssetSnapshot{
		ID:          a.ID,
		Symbol:      a.Symbol,
		Name:        name,
		Placeholder: true,
	}
}

func copyWeather(slot *WeatherSlot) WeatherSlot {
	out := *slot
	if slot.Snapshot != nil {
		snap := *slot.Snapshot
		out.Snapshot = &snap
	}
	out.Forecast = append([]weather.ForecastDay(nil), slot.Forecast...)
	return out
}
