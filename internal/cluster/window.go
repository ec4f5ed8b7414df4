// Package cluster derives "most active locations" from a rolling window of
// earthquake events. The window has one writer (the earthquake tick) and many
// readers; readers always get copies, never live window state.
package cluster

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/misua/quake-monitor-web/internal/domain"
)

// Window is a deduplicated rolling window of earthquake events with a cached
// top-clusters result, recomputed on every write rather than on a timer so
// reads are always consistent with the latest cache state.
type Window struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	horizon time.Duration
	topN    int

	events map[string]windowEvent // keyed by event ID
	top    []domain.ClusterResult
}

type windowEvent struct {
	event      domain.EarthquakeEvent
	observedAt time.Time
}

// New creates a Window with the given horizon (e.g. 6h) and result size.
func New(clock clockwork.Clock, horizon time.Duration, topN int) *Window {
	return &Window{
		clock:   clock,
		horizon: horizon,
		topN:    topN,
		events:  make(map[string]windowEvent),
	}
}

// Add merges earthquake records into the window, evicts events past the
// horizon, and recomputes the cluster ranking. Non-earthquake records are
// ignored; duplicate IDs (refetches of an unchanged feed) collapse silently.
// It returns the records that were genuinely new, so callers can alert on
// first sight of an event without their own dedup state.
func (w *Window) Add(records []domain.Record) []domain.Record {
	w.mu.Lock()
	defer w.mu.Unlock()

	var added []domain.Record
	for _, r := range records {
		if r.Kind != domain.KindEarthquake || r.Earthquake == nil {
			continue
		}
		if _, seen := w.events[r.Earthquake.ID]; !seen {
			added = append(added, r)
		}
		w.events[r.Earthquake.ID] = windowEvent{event: *r.Earthquake, observedAt: r.ObservedAt}
	}

	cutoff := w.clock.Now().Add(-w.horizon)
	for id, we := range w.events {
		if we.observedAt.Before(cutoff) {
			delete(w.events, id)
		}
	}

	w.top = w.compute(cutoff)
	return added
}

// Top returns the current ordered cluster results. The slice and its nested
// event lists are copies.
func (w *Window) Top() []domain.ClusterResult {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]domain.ClusterResult, len(w.top))
	for i, c := range w.top {
		events := make([]domain.EarthquakeEvent, len(c.Events))
		copy(events, c.Events)
		c.Events = events
		out[i] = c
	}
	return out
}

// Size reports the number of events currently in the window.
func (w *Window) Size() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.events)
}

// compute groups in-window events by normalized epicenter label and ranks
// groups by event count, then max magnitude, then most recent event.
func (w *Window) compute(cutoff time.Time) []domain.ClusterResult {
	type group struct {
		events []windowEvent
		maxMag float64
		latest time.Time
	}
	groups := make(map[string]*group)

	for _, we := range w.events {
		if we.observedAt.Before(cutoff) {
			continue
		}
		label := domain.EpicenterLabel(we.event.Epicenter.Name)
		g, ok := groups[label]
		if !ok {
			g = &group{}
			groups[label] = g
		}
		g.events = append(g.events, we)
		if we.event.Magnitude > g.maxMag {
			g.maxMag = we.event.Magnitude
		}
		if we.observedAt.After(g.latest) {
			g.latest = we.observedAt
		}
	}

	type ranked struct {
		result domain.ClusterResult
		latest time.Time
	}
	results := make([]ranked, 0, len(groups))
	for label, g := range groups {
		sort.Slice(g.events, func(i, j int) bool {
			if !g.events[i].observedAt.Equal(g.events[j].observedAt) {
				return g.events[i].observedAt.After(g.events[j].observedAt)
			}
			return g.events[i].event.ID < g.events[j].event.ID
		})
		events := make([]domain.EarthquakeEvent, len(g.events))
		for i, we := range g.events {
			events[i] = we.event
		}
		results = append(results, ranked{
			result: domain.ClusterResult{
				LocationName: label,
				EventCount:   len(events),
				MaxMagnitude: g.maxMag,
				Events:       events,
			},
			latest: g.latest,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.result.EventCount != b.result.EventCount {
			return a.result.EventCount > b.result.EventCount
		}
		if a.result.MaxMagnitude != b.result.MaxMagnitude {
			return a.result.MaxMagnitude > b.result.MaxMagnitude
		}
		if !a.latest.Equal(b.latest) {
			return a.latest.After(b.latest)
		}
		return a.result.LocationName < b.result.LocationName // stable order for full ties
	})

	if len(results) > w.topN {
		results = results[:w.topN]
	}
	out := make([]domain.ClusterResult, len(results))
	for i, r := range results {
		out[i] = r.result
	}
	return out
}
