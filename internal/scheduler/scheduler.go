// Package scheduler drives per-source polling. Each source runs on its own
// independent timer, so a slow hazard feed never delays the fast weather
// feed; all fetch and parse failures are converted into cache staleness
// updates here, and nothing below this boundary can terminate the process.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/misua/quake-monitor-web/internal/cache"
	"github.com/misua/quake-monitor-web/internal/cluster"
	"github.com/misua/quake-monitor-web/internal/domain"
	"github.com/misua/quake-monitor-web/internal/fetch"
	"github.com/misua/quake-monitor-web/internal/observability"
	"github.com/misua/quake-monitor-web/internal/source"
)

// maxBackoffMultiplier caps how far a failing source's effective interval is
// widened before a success resets it.
const maxBackoffMultiplier = 8

// alertMagnitude is the threshold above which newly seen earthquakes are
// published to the alert sink.
const alertMagnitude = 5.0

// SlowChecker reports whether a source has been persistently slow. The
// performance monitor implements it.
type SlowChecker interface {
	Slow(sourceID string) bool
}

// AlertPublisher receives newly seen significant earthquakes. Optional;
// publish failures are logged and dropped.
type AlertPublisher interface {
	PublishQuake(ctx context.Context, record domain.Record) error
}

// Scheduler owns one polling loop per adapter and is the cache's only
// writer.
type Scheduler struct {
	adapters []source.Adapter
	store    *cache.Store
	window   *cluster.Window
	slow     SlowChecker
	alerts   AlertPublisher
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock

	// sem bounds concurrent fetch+parse work so a slow markup parse cannot
	// starve the timers driving other sources.
	sem *semaphore.Weighted

	warmSources atomic.Int64 // sources that completed their first tick
}

// New wires a Scheduler. slow and alerts may be nil.
func New(
	adapters []source.Adapter,
	store *cache.Store,
	window *cluster.Window,
	slow SlowChecker,
	alerts AlertPublisher,
	logger *slog.Logger,
	metrics *observability.Metrics,
	clock clockwork.Clock,
	maxConcurrentFetches int64,
) *Scheduler {
	if maxConcurrentFetches <= 0 {
		maxConcurrentFetches = 4
	}
	return &Scheduler{
		adapters: adapters,
		store:    store,
		window:   window,
		slow:     slow,
		alerts:   alerts,
		logger:   logger,
		metrics:  metrics,
		clock:    clock,
		sem:      semaphore.NewWeighted(maxConcurrentFetches),
	}
}

// CheckReadiness returns nil once every source has completed at least one
// tick, successful or not.
func (s *Scheduler) CheckReadiness(_ context.Context) error {
	if int(s.warmSources.Load()) < len(s.adapters) {
		return errors.New("scheduler has not completed a tick for every source")
	}
	return nil
}

// Run starts one loop per source and blocks until the context is cancelled.
// Always returns nil: source loops cannot fail, only log.
func (s *Scheduler) Run(ctx context.Context) error {
	s.metrics.SchedulerRunning.Set(1)
	defer s.metrics.SchedulerRunning.Set(0)

	for _, a := range s.adapters {
		s.store.Register(a.Name(), a.Kind(), a.Interval())
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, a := range s.adapters {
		g.Go(func() error {
			s.runSource(ctx, a)
			return nil
		})
	}
	err := g.Wait()
	s.logger.Info("scheduler stopped", "reason", ctx.Err())
	return err
}

type tickResult struct {
	failed bool
}

// runSource is one source's state machine: Idle → Fetching → Idle. The
// ticker fires at the source's configured interval; a tick that lands while
// the previous fetch is still in flight is skipped (and the skip itself is a
// signal of source unhealthiness), and consecutive failures widen the
// effective interval until a success resets it.
func (s *Scheduler) runSource(ctx context.Context, a source.Adapter) {
	logger := s.logger.With("source", a.Name())
	logger.Info("source loop started", "interval", a.Interval(), "kind", a.Kind())

	ticker := s.clock.NewTicker(a.Interval())
	defer ticker.Stop()

	results := make(chan tickResult, 1)
	var (
		inFlight    bool
		firstTick   = true
		failures    int
		lastAttempt time.Time
	)

	start := func() {
		inFlight = true
		lastAttempt = s.clock.Now()
		go func() {
			results <- tickResult{failed: s.tick(ctx, a, logger)}
		}()
	}

	start() // immediate first fetch, don't wait a full interval

	for {
		select {
		case <-ctx.Done():
			// The in-flight fetch, if any, is cancelled through ctx.
			return

		case r := <-results:
			inFlight = false
			if r.failed {
				failures++
			} else {
				failures = 0
			}
			if firstTick {
				firstTick = false
				s.warmSources.Add(1)
			}
			s.updateStaleGauge(a.Name())

		case <-ticker.Chan():
			if inFlight {
				logger.Warn("tick skipped, previous fetch still in flight")
				s.metrics.TickSkips.WithLabelValues(a.Name(), "in_flight").Inc()
				continue
			}
			if wait := s.backoffRemaining(a, failures, lastAttempt); wait > 0 {
				logger.Debug("tick skipped, source backing off", "remaining", wait)
				s.metrics.TickSkips.WithLabelValues(a.Name(), "backoff").Inc()
				continue
			}
			start()
		}
	}
}

// backoffRemaining widens the effective interval to interval×2^failures
// (capped), with one extra widening step when the performance monitor has
// flagged the source as persistently slow.
func (s *Scheduler) backoffRemaining(a source.Adapter, failures int, lastAttempt time.Time) time.Duration {
	mult := 1
	for i := 0; i < failures && mult < maxBackoffMultiplier; i++ {
		mult *= 2
	}
	if s.slow != nil && s.slow.Slow(a.Name()) && mult < maxBackoffMultiplier {
		mult *= 2
	}
	if mult == 1 {
		return 0
	}
	eligible := lastAttempt.Add(time.Duration(mult) * a.Interval())
	return eligible.Sub(s.clock.Now())
}

// tick runs one fetch+parse attempt and writes the outcome into the cache.
// Returns true when the attempt failed hard.
func (s *Scheduler) tick(ctx context.Context, a source.Adapter, logger *slog.Logger) bool {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return true
	}
	defer s.sem.Release(1)

	records, err := a.Fetch(ctx)
	switch {
	case err == nil:
		s.store.RecordSuccess(a.Name(), records)
		s.metrics.FetchAttempts.WithLabelValues(a.Name(), "success").Inc()
		s.metrics.RecordsIngested.WithLabelValues(a.Name()).Add(float64(len(records)))
		s.ingestEarthquakes(ctx, a, records, logger)
		logger.Debug("fetch succeeded", "records", len(records))
		return false

	case errors.Is(err, source.ErrEmptyResult):
		// Legitimate "no current alerts": keep the previous value, refresh
		// the timestamp so the entry does not go stale.
		s.store.RecordSuccess(a.Name(), nil)
		s.metrics.FetchAttempts.WithLabelValues(a.Name(), "empty").Inc()
		logger.Debug("fetch returned no records")
		return false

	default:
		s.store.RecordFailure(a.Name(), err)
		s.metrics.FetchAttempts.WithLabelValues(a.Name(), "failure").Inc()
		s.metrics.FetchErrors.WithLabelValues(a.Name(), errorKind(err)).Inc()
		logger.Error("fetch failed", "error", err)
		return true
	}
}

// ingestEarthquakes feeds new seismic records into the rolling window and
// publishes alerts for newly seen significant events.
func (s *Scheduler) ingestEarthquakes(ctx context.Context, a source.Adapter, records []domain.Record, logger *slog.Logger) {
	if a.Kind() != domain.KindEarthquake || s.window == nil {
		return
	}
	added := s.window.Add(records)
	s.metrics.WindowEvents.Set(float64(s.window.Size()))

	if s.alerts == nil {
		return
	}
	for _, r := range added {
		if r.Earthquake.Magnitude < alertMagnitude {
			continue
		}
		if err := s.alerts.PublishQuake(ctx, r); err != nil {
			logger.Warn("quake alert publish failed", "error", err, "event", r.Earthquake.ID)
		}
	}
}

func (s *Scheduler) updateStaleGauge(sourceID string) {
	entry, ok := s.store.Get(sourceID)
	if !ok {
		return
	}
	v := 0.0
	if entry.Stale {
		v = 1.0
	}
	s.metrics.SourceStale.WithLabelValues(sourceID).Set(v)
}

// errorKind labels a fetch or parse failure for metrics.
func errorKind(err error) string {
	if kind := fetch.KindOf(err); kind != "" {
		return string(kind)
	}
	if source.IsParseError(err) {
		return "parse_error"
	}
	return "unknown"
}
