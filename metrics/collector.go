// Package metrics defines the prometheus metrics of the full node.
// All metrics are in base units and accumulating counters carry the 'total' suffix.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ledger"

// Rejection reasons used as label values.
const (
	ReasonInvalidInput     = "invalid_input"
	ReasonInvalidOutput    = "invalid_output"
	ReasonInsufficientFund = "insufficient_funds"
	ReasonInvalidSignature = "invalid_signature"
	ReasonDuplicate        = "duplicate"
	ReasonOther            = "other"
)

// Collector is responsible for creation and collection of metrics for the prometheus.
type Collector struct {
	Registry *prometheus.Registry

	TransactionsAdmitted prometheus.Counter
	TransactionsRejected *prometheus.CounterVec
	BlocksMined          prometheus.Counter
	MempoolSize          prometheus.Gauge
	UTXOCount            prometheus.Gauge
	HashAttempts         prometheus.Counter
	MiningDuration       prometheus.Histogram
}

// New creates an instance of Collector with a new prometheus registry holding all ledger metrics.
func New() *Collector {
	c := &Collector{
		Registry: prometheus.NewRegistry(),
		TransactionsAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_admitted_total",
			Help:      "Number of transactions admitted to the mempool.",
		}),
		TransactionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_rejected_total",
			Help:      "Number of transactions rejected at admission, by reason.",
		}, []string{"reason"}),
		BlocksMined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_mined_total",
			Help:      "Number of blocks appended to the chain.",
		}),
		MempoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mempool_size",
			Help:      "Number of pending transactions.",
		}),
		UTXOCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "utxo_count",
			Help:      "Number of unspent transaction outputs.",
		}),
		HashAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pow_hash_attempts_total",
			Help:      "Number of hashes computed while searching for nonces.",
		}),
		MiningDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "block_mining_duration_seconds",
			Help:      "Time spent in the proof of work search per block.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}

	c.Registry.MustRegister(
		c.TransactionsAdmitted,
		c.TransactionsRejected,
		c.BlocksMined,
		c.MempoolSize,
		c.UTXOCount,
		c.HashAttempts,
		c.MiningDuration,
	)

	return c
}
