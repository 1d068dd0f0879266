// Package metrics exposes the prometheus counters and histograms for
// transaction processing. Of these, the Application increments
// SandboxFailures; nothing in this module updates the others.
// Grounded on the pack's go-ethereum-style metrics registration
// pattern, adapted to client_golang's standard collector registration
// since this repo carries prometheus/client_golang directly rather
// than go-ethereum's bespoke metrics package.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector groups every metric this ledger core reports. A nil
// *Collector is never passed around; NewCollector always returns one
// backed by its own registry unless a Registerer is passed to share an
// existing one.
type Collector struct {
	TxProcessed      prometheus.Counter
	TxFailed         prometheus.Counter
	SandboxFailures  prometheus.Counter
	GasConsumed      prometheus.Histogram
	SandboxDuration  prometheus.Histogram
}

// NewCollector builds a Collector registered against registerer. A nil
// registerer uses prometheus.NewRegistry() so tests never collide with
// the global default registry.
func NewCollector(registerer ...prometheus.Registerer) *Collector {
	var reg prometheus.Registerer
	if len(registerer) > 0 && registerer[0] != nil {
		reg = registerer[0]
	} else {
		reg = prometheus.NewRegistry()
	}

	c := &Collector{
		TxProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgercore",
			Name:      "transactions_processed_total",
			Help:      "Transactions that completed process_tx_inputs and process_payments.",
		}),
		TxFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgercore",
			Name:      "transactions_failed_total",
			Help:      "Transactions rejected during input validation or claim verification.",
		}),
		SandboxFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgercore",
			Name:      "sandbox_failures_total",
			Help:      "Contract executions that returned a FAILED receipt.",
		}),
		GasConsumed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ledgercore",
			Name:      "gas_consumed",
			Help:      "Gas consumed per contract execution.",
			Buckets:   prometheus.ExponentialBuckets(100, 2, 12),
		}),
		SandboxDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ledgercore",
			Name:      "sandbox_duration_seconds",
			Help:      "Wall-clock time spent inside the sandbox per execution.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(c.TxProcessed, c.TxFailed, c.SandboxFailures, c.GasConsumed, c.SandboxDuration)
	return c
}

// RecordSandboxFailure increments the sandbox failure counter.
func (c *Collector) RecordSandboxFailure() {
	c.SandboxFailures.Inc()
}

// RecordTxProcessed increments the processed-transaction counter.
func (c *Collector) RecordTxProcessed() {
	c.TxProcessed.Inc()
}

// RecordTxFailed increments the failed-transaction counter.
func (c *Collector) RecordTxFailed() {
	c.TxFailed.Inc()
}
