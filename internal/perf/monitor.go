// Package perf classifies operation latency against warning and critical
// thresholds. It is the detection half of the slow-source story: the fetch
// client's hard timeout is the sole abort mechanism, and this monitor only
// logs, counts, and informs the scheduler's backoff.
package perf

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/misua/quake-monitor-web/internal/observability"
)

// Classification labels an operation duration.
type Classification string

const (
	ClassNormal   Classification = "normal"
	ClassWarning  Classification = "warning"
	ClassCritical Classification = "critical"
)

// Sample is one measured operation, handed to the sink. Transient; never
// persisted.
type Sample struct {
	Operation      string         `json:"operation"`
	SourceID       string         `json:"source_id"`
	DurationMS     int64          `json:"duration_ms"`
	Classification Classification `json:"classification"`
}

// Emitter is the alerting sink boundary. Implementations decide transport;
// emission failures are logged and dropped, never propagated into the
// pipeline.
type Emitter interface {
	Emit(ctx context.Context, sample Sample) error
}

// slowAfter is the number of consecutive critical samples before a source is
// reported slow to the scheduler.
const slowAfter = 3

// Monitor classifies durations and tracks persistently slow sources.
type Monitor struct {
	warn     time.Duration
	critical time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
	emitter  Emitter

	mu        sync.Mutex
	criticals map[string]int // consecutive critical samples per source
}

// New creates a Monitor. emitter may be nil when no external sink is
// configured; log and metrics signals are always produced.
func New(warn, critical time.Duration, logger *slog.Logger, metrics *observability.Metrics, emitter Emitter) *Monitor {
	return &Monitor{
		warn:      warn,
		critical:  critical,
		logger:    logger,
		metrics:   metrics,
		emitter:   emitter,
		criticals: make(map[string]int),
	}
}

// Classify maps a duration onto the three-level scale.
func (m *Monitor) Classify(d time.Duration) Classification {
	switch {
	case d >= m.critical:
		return ClassCritical
	case d >= m.warn:
		return ClassWarning
	default:
		return ClassNormal
	}
}

// Record measures one completed operation: classify, log at matching
// severity, count, update the slow-source state, and forward to the sink.
func (m *Monitor) Record(operation, sourceID string, elapsed time.Duration) Classification {
	class := m.Classify(elapsed)

	m.metrics.OperationDuration.WithLabelValues(sourceID, operation).Observe(elapsed.Seconds())
	m.metrics.OperationsByClass.WithLabelValues(sourceID, string(class)).Inc()

	attrs := []any{
		"operation", operation,
		"source", sourceID,
		"duration_ms", elapsed.Milliseconds(),
	}
	switch class {
	case ClassCritical:
		m.logger.Error("operation critically slow", attrs...)
	case ClassWarning:
		m.logger.Warn("operation slow", attrs...)
	default:
		m.logger.Debug("operation completed", attrs...)
	}

	m.mu.Lock()
	if class == ClassCritical {
		m.criticals[sourceID]++
	} else {
		m.criticals[sourceID] = 0
	}
	m.mu.Unlock()

	if m.emitter != nil && class != ClassNormal {
		sample := Sample{
			Operation:      operation,
			SourceID:       sourceID,
			DurationMS:     elapsed.Milliseconds(),
			Classification: class,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := m.emitter.Emit(ctx, sample); err != nil {
			m.logger.Warn("perf sample emit failed", "error", err, "source", sourceID)
		}
	}

	return class
}

// ObserveFetch implements the fetch client's observer hook.
func (m *Monitor) ObserveFetch(operation, sourceID string, elapsed time.Duration) {
	m.Record(operation, sourceID, elapsed)
}

// Slow reports whether a source has been critically slow for several
// consecutive operations. The scheduler uses this to widen the source's
// effective interval; the monitor itself never aborts anything.
func (m *Monitor) Slow(sourceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.criticals[sourceID] >= slowAfter
}
