package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records contention on the serialized ledger scope.
type LedgerMetrics struct {
	retries    prometheus.Counter
	lockWait   prometheus.Histogram
	consistent prometheus.Gauge
}

func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "brewpos_ledger_conflict_retries_total",
		Help: "Ledger transactions retried after a serialization conflict.",
	})
	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "brewpos_ledger_lock_wait_seconds",
		Help:    "Time spent waiting for the ledger writer lock.",
		Buckets: prometheus.DefBuckets,
	})
	consistent := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "brewpos_ledger_consistent",
		Help: "1 when the last verification found no mismatched entries.",
	})
	reg.MustRegister(retries, lockWait, consistent)
	return &LedgerMetrics{retries: retries, lockWait: lockWait, consistent: consistent}
}

func (m *LedgerMetrics) IncRetry() {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Inc()
}

func (m *LedgerMetrics) ObserveLockWait(d time.Duration) {
	if m == nil || m.lockWait == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

func (m *LedgerMetrics) SetConsistent(ok bool) {
	if m == nil || m.consistent == nil {
		return
	}
	if ok {
		m.consistent.Set(1)
		return
	}
	m.consistent.Set(0)
}
