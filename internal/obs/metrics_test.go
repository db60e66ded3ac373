package obs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgelink/internal/schema"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.IncEntryRegistered()
	m.IncEntryRegistered()
	m.IncClosureApplied()
	m.IncMirrorSubmission()
	m.IncMirrorSkip()
	m.IncDuplicateEvent()
	m.IncAmbiguousAbort()
	m.IncUnknownCorrelation()
	m.IncSubmissionFailure()
	m.IncQueueDrop()

	s := m.Snapshot()
	assert.Equal(t, uint64(2), s.EntriesRegistered)
	assert.Equal(t, uint64(1), s.ClosuresApplied)
	assert.Equal(t, uint64(1), s.MirrorSubmissions)
	assert.Equal(t, uint64(1), s.MirrorSkips)
	assert.Equal(t, uint64(1), s.DuplicateEvents)
	assert.Equal(t, uint64(1), s.AmbiguousAborts)
	assert.Equal(t, uint64(1), s.UnknownCorrelations)
	assert.Equal(t, uint64(1), s.SubmissionFailures)
	assert.Equal(t, uint64(1), s.QueueDrops)
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics
	m.IncEntryRegistered()
	m.ObserveEvent(schema.EventHeader{Type: schema.EventLocalExecution})
	assert.Equal(t, Snapshot{}, m.Snapshot())
}

func TestObserveEventLatency(t *testing.T) {
	m := NewMetrics()
	m.ObserveEvent(schema.EventHeader{Type: schema.EventLocalExecution, TsEvent: 100, TsRecv: 300})
	m.ObserveEvent(schema.EventHeader{Type: schema.EventLocalExecution, TsEvent: 100, TsRecv: 200})

	s := m.Snapshot()
	assert.Equal(t, uint64(2), s.EventCounts[schema.EventLocalExecution])
	require.Equal(t, uint64(2), s.HandleLatency.Count)
	assert.Equal(t, 100*time.Nanosecond, s.HandleLatency.Min)
	assert.Equal(t, 200*time.Nanosecond, s.HandleLatency.Max)
	assert.Equal(t, 150*time.Nanosecond, s.HandleLatency.Avg)
}

func TestNewRegistryGathers(t *testing.T) {
	m := NewMetrics()
	m.IncMirrorSubmission()

	reg := NewRegistry(m, func() int { return 3 })
	families, err := reg.Gather()
	require.NoError(t, err)

	found := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if metric.GetCounter() != nil {
				found[mf.GetName()] = metric.GetCounter().GetValue()
			}
			if metric.GetGauge() != nil {
				found[mf.GetName()] = metric.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, float64(1), found["hedgelink_mirror_submissions_total"])
	assert.Equal(t, float64(3), found["hedgelink_open_trade_groups"])
}
