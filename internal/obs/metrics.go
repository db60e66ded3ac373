// Package obs collects counters and latency stats for the
// reconciliation loop.
package obs

import (
	"sync/atomic"
	"time"

	"hedgelink/internal/schema"
)

const maxEventType = int(schema.EventGroupRemoved)

// Metrics collects lightweight counters and latency stats. All
// methods are safe on a nil receiver so callers need no wiring checks.
type Metrics struct {
	eventCounts [maxEventType + 1]uint64

	entriesRegistered   uint64
	closuresApplied     uint64
	mirrorSubmissions   uint64
	mirrorSkips         uint64
	duplicateEvents     uint64
	ambiguousAborts     uint64
	unknownCorrelations uint64
	submissionFailures  uint64
	queueDrops          uint64

	handleLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts         map[schema.EventType]uint64
	EntriesRegistered   uint64
	ClosuresApplied     uint64
	MirrorSubmissions   uint64
	MirrorSkips         uint64
	DuplicateEvents     uint64
	AmbiguousAborts     uint64
	UnknownCorrelations uint64
	SubmissionFailures  uint64
	QueueDrops          uint64
	HandleLatency       LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveEvent counts a processed event and its ingest latency.
func (m *Metrics) ObserveEvent(header schema.EventHeader) {
	if m == nil {
		return
	}
	idx := int(header.Type)
	if idx >= 0 && idx < len(m.eventCounts) {
		atomic.AddUint64(&m.eventCounts[idx], 1)
	}
	if header.TsEvent > 0 && header.TsRecv > 0 {
		if delta := header.TsRecv - header.TsEvent; delta >= 0 {
			m.handleLatency.Observe(time.Duration(delta))
		}
	}
}

// IncEntryRegistered counts a new or incremented trade group.
func (m *Metrics) IncEntryRegistered() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.entriesRegistered, 1)
}

// IncClosureApplied counts a confirmed ledger decrement.
func (m *Metrics) IncClosureApplied() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.closuresApplied, 1)
}

// IncMirrorSubmission counts a closing order placed for a remote
// closure.
func (m *Metrics) IncMirrorSubmission() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.mirrorSubmissions, 1)
}

// IncMirrorSkip counts a closure suppressed by the reason policy.
func (m *Metrics) IncMirrorSkip() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.mirrorSkips, 1)
}

// IncDuplicateEvent counts an event dropped by the dedup guard.
func (m *Metrics) IncDuplicateEvent() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.duplicateEvents, 1)
}

// IncAmbiguousAbort counts a matching abort on two or more candidates.
func (m *Metrics) IncAmbiguousAbort() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ambiguousAborts, 1)
}

// IncUnknownCorrelation counts a remote message with no known group.
func (m *Metrics) IncUnknownCorrelation() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.unknownCorrelations, 1)
}

// IncSubmissionFailure counts a rejected mirror-close order.
func (m *Metrics) IncSubmissionFailure() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.submissionFailures, 1)
}

// IncQueueDrop records a bus publish drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	eventCounts := make(map[schema.EventType]uint64)
	for i := range m.eventCounts {
		if v := atomic.LoadUint64(&m.eventCounts[i]); v > 0 {
			eventCounts[schema.EventType(i)] = v
		}
	}
	return Snapshot{
		EventCounts:         eventCounts,
		EntriesRegistered:   atomic.LoadUint64(&m.entriesRegistered),
		ClosuresApplied:     atomic.LoadUint64(&m.closuresApplied),
		MirrorSubmissions:   atomic.LoadUint64(&m.mirrorSubmissions),
		MirrorSkips:         atomic.LoadUint64(&m.mirrorSkips),
		DuplicateEvents:     atomic.LoadUint64(&m.duplicateEvents),
		AmbiguousAborts:     atomic.LoadUint64(&m.ambiguousAborts),
		UnknownCorrelations: atomic.LoadUint64(&m.unknownCorrelations),
		SubmissionFailures:  atomic.LoadUint64(&m.submissionFailures),
		QueueDrops:          atomic.LoadUint64(&m.queueDrops),
		HandleLatency:       m.handleLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(atomic.LoadUint64(&l.min)),
		Max:   time.Duration(atomic.LoadUint64(&l.max)),
		Avg:   time.Duration(atomic.LoadUint64(&l.sum) / count),
	}
}
