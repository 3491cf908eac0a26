package neoconsole

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "neoconsole"

// MetricsConfig controls metric collection.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Metrics holds the Prometheus collectors of a Service. A nil *Metrics records nothing.
type Metrics struct {
	QueriesTotal      *prometheus.CounterVec
	QueryDuration     *prometheus.HistogramVec
	TransactionsTotal *prometheus.CounterVec
	ImportsTotal      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. Collectors that
// reg already holds are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "queries_total",
				Help:      "Queries executed by mode (read, write, skipped) and outcome",
			},
			[]string{"mode", "outcome"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "query_duration_seconds",
				Help:      "Query execution time in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		TransactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "transactions_total",
				Help:      "Guarded transactions by outcome (committed, rolled_back, commit_failed)",
			},
			[]string{"outcome"},
		),
		ImportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "imports_total",
				Help:      "Graph imports by outcome",
			},
			[]string{"outcome"},
		),
	}

	var err error
	if m.QueriesTotal, err = register(reg, m.QueriesTotal); err != nil {
		return nil, err
	}
	if m.QueryDuration, err = register(reg, m.QueryDuration); err != nil {
		return nil, err
	}
	if m.TransactionsTotal, err = register(reg, m.TransactionsTotal); err != nil {
		return nil, err
	}
	if m.ImportsTotal, err = register(reg, m.ImportsTotal); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg. When an identical collector is already registered, that
// collector is returned instead, so several services can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

const (
	modeRead    = "read"
	modeWrite   = "write"
	modeSkipped = "skipped"

	outcomeOK    = "ok"
	outcomeError = "error"

	txCommitted    = "committed"
	txRolledBack   = "rolled_back"
	txCommitFailed = "commit_failed"
)

func (m *Metrics) observeQuery(mode string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(mode, outcome(err)).Inc()
	if mode != modeSkipped {
		m.QueryDuration.WithLabelValues(mode).Observe(d.Seconds())
	}
}

func (m *Metrics) observeTransaction(result string) {
	if m == nil {
		return
	}
	m.TransactionsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) observeImport(err error) {
	if m == nil {
		return
	}
	m.ImportsTotal.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return outcomeError
	}
	return outcomeOK
}
