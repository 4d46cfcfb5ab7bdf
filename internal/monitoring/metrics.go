// Package monitoring exposes Prometheus metrics for item resolution, cart
// reconciliation and checkout.
package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"maitred/internal/matching"
	"maitred/internal/ordering"
)

const namespace = "maitred"

// Metrics owns a registry and the service's collectors. It implements the
// observer interfaces of the matching, ordering and checkout packages.
type Metrics struct {
	registry  *prometheus.Registry
	startTime time.Time

	decisions      *prometheus.CounterVec
	degradations   *prometheus.CounterVec
	reconcileTime  prometheus.Histogram
	rejections     prometheus.Counter
	clarifications prometheus.Counter
	checkouts      *prometheus.CounterVec
	evaluation     *prometheus.GaugeVec

	mu   sync.RWMutex
	last map[string]interface{}
}

// NewMetrics creates the collectors and registers them, together with the
// Go runtime and process collectors, on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
		last:      make(map[string]interface{}),

		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolver_decisions_total",
				Help:      "Item resolution decisions by candidate pool and outcome",
			},
			[]string{"pool", "kind"},
		),
		degradations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scorer_degradations_total",
				Help:      "Scorer calls skipped because the backend failed",
			},
			[]string{"strategy"},
		),
		reconcileTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reconcile_duration_seconds",
				Help:      "Time taken to apply one order draft",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
		),
		rejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rejected_items_total",
				Help:      "Requested items that matched nothing on the menu or in the cart",
			},
		),
		clarifications: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "clarifications_total",
				Help:      "Requested items that matched several candidates",
			},
		),
		checkouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkouts_total",
				Help:      "Checkout attempts by result",
			},
			[]string{"result"},
		),
		evaluation: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "evaluation_accuracy_ratio",
				Help:      "Accuracy of the last resolver evaluation run by expected decision",
			},
			[]string{"kind"},
		),
	}

	m.registry.MustRegister(
		m.decisions,
		m.degradations,
		m.reconcileTime,
		m.rejections,
		m.clarifications,
		m.checkouts,
		m.evaluation,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing the metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveDegradation implements matching.Observer
func (m *Metrics) ObserveDegradation(strategy matching.Strategy) {
	m.degradations.WithLabelValues(string(strategy)).Inc()
}

// ObserveDecision implements ordering.Observer
func (m *Metrics) ObserveDecision(pool ordering.Pool, kind matching.DecisionKind) {
	m.decisions.WithLabelValues(string(pool), string(kind)).Inc()
}

// ObserveReconcile implements ordering.Observer
func (m *Metrics) ObserveReconcile(elapsed time.Duration, result *ordering.Result) {
	m.reconcileTime.Observe(elapsed.Seconds())
	if result == nil {
		return
	}
	m.rejections.Add(float64(len(result.Rejected)))
	m.clarifications.Add(float64(len(result.Clarifications)))
}

// ObserveCheckout implements checkout.Observer
func (m *Metrics) ObserveCheckout(success bool) {
	result := "unavailable"
	if success {
		result = "success"
	}
	m.checkouts.WithLabelValues(result).Inc()
}

// RecordEvaluation stores the accuracy figures of an evaluation run
func (m *Metrics) RecordEvaluation(accuracy map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for kind, v := range accuracy {
		m.evaluation.WithLabelValues(kind).Set(v)
		m.last["evaluation_"+kind] = v
	}
	m.last["evaluation_last_run"] = time.Now().Format(time.RFC3339)
}

// Snapshot returns the counter values by metric and label set, plus uptime,
// for the JSON stats endpoint
func (m *Metrics) Snapshot() (map[string]interface{}, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	out := make(map[string]interface{})
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range metric.GetLabel() {
				key += "_" + lp.GetValue()
			}
			switch {
			case metric.GetCounter() != nil:
				out[key] = metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				out[key+"_count"] = metric.GetHistogram().GetSampleCount()
			}
		}
	}

	m.mu.RLock()
	for k, v := range m.last {
		out[k] = v
	}
	m.mu.RUnlock()

	out["uptime_seconds"] = time.Since(m.startTime).Seconds()
	return out, nil
}
