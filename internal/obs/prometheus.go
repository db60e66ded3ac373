package obs

import "github.com/prometheus/client_golang/prometheus"

// NewRegistry builds a prometheus registry exporting the metrics and
// the live trade group count. The collectors read the atomic counters
// on scrape; the hot path never touches prometheus.
func NewRegistry(m *Metrics, openGroups func() int) *prometheus.Registry {
	reg := prometheus.NewRegistry()

	counter := func(name, help string, value func(Snapshot) uint64) prometheus.CounterFunc {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "hedgelink",
			Name:      name,
			Help:      help,
		}, func() float64 {
			return float64(value(m.Snapshot()))
		})
	}

	reg.MustRegister(
		counter("entries_registered_total", "Trade groups created or incremented.", func(s Snapshot) uint64 { return s.EntriesRegistered }),
		counter("closures_applied_total", "Confirmed ledger decrements.", func(s Snapshot) uint64 { return s.ClosuresApplied }),
		counter("mirror_submissions_total", "Closing orders placed for remote closures.", func(s Snapshot) uint64 { return s.MirrorSubmissions }),
		counter("mirror_skips_total", "Remote closures suppressed by reason policy.", func(s Snapshot) uint64 { return s.MirrorSkips }),
		counter("duplicate_events_total", "Events dropped by the dedup guard.", func(s Snapshot) uint64 { return s.DuplicateEvents }),
		counter("ambiguous_aborts_total", "Matching aborts on multiple candidates.", func(s Snapshot) uint64 { return s.AmbiguousAborts }),
		counter("unknown_correlations_total", "Remote messages with no known trade group.", func(s Snapshot) uint64 { return s.UnknownCorrelations }),
		counter("submission_failures_total", "Rejected mirror-close orders.", func(s Snapshot) uint64 { return s.SubmissionFailures }),
		counter("queue_drops_total", "Bus publish drops.", func(s Snapshot) uint64 { return s.QueueDrops }),
	)

	if openGroups != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "hedgelink",
			Name:      "open_trade_groups",
			Help:      "Trade groups with remaining quantity.",
		}, func() float64 {
			return float64(openGroups())
		}))
	}

	return reg
}
