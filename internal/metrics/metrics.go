// Package metrics exposes reconciliation metrics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/JonMunkholm/rxstock/internal/core"
)

const namespace = "rxstock"

// Recorder implements core.Metrics.
type Recorder struct {
	sessionsOpened  *prometheus.CounterVec
	sessionsActive  prometheus.Gauge
	records         *prometheus.CounterVec
	lookupFailures  prometheus.Counter
	chunkRecords    prometheus.Counter
	chunkDuration   prometheus.Histogram
	chunkFailures   prometheus.Counter
	commitsFinished *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		sessionsOpened: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "opened_total",
			Help:      "Reconciliation sessions created, by import mode",
		}, []string{"mode"}),
		sessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently held in memory",
		}),
		records: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "match",
			Name:      "records_total",
			Help:      "Records classified, by resulting status",
		}, []string{"status"}),
		lookupFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "match",
			Name:      "lookup_failures_total",
			Help:      "Catalog lookups that failed during classification",
		}),
		chunkRecords: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commit",
			Name:      "records_total",
			Help:      "Records written to inventory",
		}),
		chunkDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "commit",
			Name:      "chunk_duration_seconds",
			Help:      "Duration of a single chunk write",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
		}),
		chunkFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commit",
			Name:      "chunk_failures_total",
			Help:      "Chunks whose write failed",
		}),
		commitsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commit",
			Name:      "finished_total",
			Help:      "Finished commits, by outcome",
		}, []string{"outcome"}),
	}
}

func (r *Recorder) SessionOpened(mode string) { r.sessionsOpened.WithLabelValues(mode).Inc() }

func (r *Recorder) SessionsActive(n int) { r.sessionsActive.Set(float64(n)) }

func (r *Recorder) RecordsClassified(st core.MatchStats) {
	r.records.WithLabelValues(string(core.StatusMatched)).Add(float64(st.Matched))
	r.records.WithLabelValues(string(core.StatusSimilar)).Add(float64(st.Similar))
	r.records.WithLabelValues(string(core.StatusNew)).Add(float64(st.New))
	r.records.WithLabelValues(string(core.StatusInvalid)).Add(float64(st.Invalid))
	r.lookupFailures.Add(float64(st.LookupFailures))
}

func (r *Recorder) ChunkCommitted(records int, elapsed time.Duration) {
	r.chunkRecords.Add(float64(records))
	r.chunkDuration.Observe(elapsed.Seconds())
}

func (r *Recorder) ChunkFailed() { r.chunkFailures.Inc() }

func (r *Recorder) CommitFinished(outcome string) { r.commitsFinished.WithLabelValues(outcome).Inc() }
