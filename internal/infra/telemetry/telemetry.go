package telemetry

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// DomainMetrics holds Prometheus collectors for limiter and registry activity.
type DomainMetrics struct {
	decisions      *prometheus.CounterVec
	storeErrors    prometheus.Counter
	swept          prometheus.Counter
	operations     *prometheus.CounterVec
	redirectErrors prometheus.Counter
}

// NewDomainMetrics registers the collectors with reg, reusing any that already exist.
func NewDomainMetrics(reg prometheus.Registerer, namespace string) (*DomainMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "profiles"
	}

	m := &DomainMetrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rate_limit",
			Name:      "decisions_total",
			Help:      "Rate limit decisions partitioned by action and outcome.",
		}, []string{"action", "allowed"}),
		storeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rate_limit",
			Name:      "store_errors_total",
			Help:      "Counter store failures that were allowed through.",
		}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rate_limit",
			Name:      "swept_entries_total",
			Help:      "Expired counters removed by the janitor.",
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "username",
			Name:      "operations_total",
			Help:      "Username registry operations partitioned by operation and outcome.",
		}, []string{"operation", "outcome"}),
		redirectErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "username",
			Name:      "redirect_write_failures_total",
			Help:      "Redirect writes that failed after a successful rename.",
		}),
	}

	var err error
	if m.decisions, err = RegisterCollector(reg, m.decisions); err != nil {
		return nil, err
	}
	if m.storeErrors, err = RegisterCollector(reg, m.storeErrors); err != nil {
		return nil, err
	}
	if m.swept, err = RegisterCollector(reg, m.swept); err != nil {
		return nil, err
	}
	if m.operations, err = RegisterCollector(reg, m.operations); err != nil {
		return nil, err
	}
	if m.redirectErrors, err = RegisterCollector(reg, m.redirectErrors); err != nil {
		return nil, err
	}

	return m, nil
}

// RegisterCollector registers c with reg, returning the already registered collector on duplicates.
func RegisterCollector[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return c, fmt.Errorf("register collector: %w", err)
	}
	return c, nil
}

// ObserveDecision counts a combined limiter decision.
func (m *DomainMetrics) ObserveDecision(action string, allowed bool) {
	m.decisions.WithLabelValues(action, strconv.FormatBool(allowed)).Inc()
}

// IncStoreError counts a fail-open store failure.
func (m *DomainMetrics) IncStoreError() {
	m.storeErrors.Inc()
}

// AddSwept counts counters removed by a sweep.
func (m *DomainMetrics) AddSwept(count int) {
	m.swept.Add(float64(count))
}

// ObserveOperation counts a registry operation outcome.
func (m *DomainMetrics) ObserveOperation(operation, outcome string) {
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// IncRedirectWriteFailure counts a failed best-effort redirect write.
func (m *DomainMetrics) IncRedirectWriteFailure() {
	m.redirectErrors.Inc()
}
