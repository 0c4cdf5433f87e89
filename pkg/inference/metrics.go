package inference

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"storybook/pkg/schema"
)

const namespace = "storybook"

// Metrics records upstream calls. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	degraded *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "requests_total",
				Help:      "Total number of calls to AI backends",
			},
			[]string{"backend", "operation", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "duration_seconds",
				Help:      "AI backend call duration in seconds",
				Buckets:   []float64{.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"backend", "operation"},
		),
		degraded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "enrichment",
				Name:      "degraded_total",
				Help:      "Optional enrichment calls that failed and were skipped",
			},
			[]string{"operation"},
		),
	}
}

func (m *Metrics) observe(backend, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(backend, operation, outcome(err)).Inc()
	m.duration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) degrade(operation string) {
	if m == nil {
		return
	}
	m.degraded.WithLabelValues(operation).Inc()
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if e, ok := schema.AsError(err); ok {
		return string(e.Code)
	}
	return "error"
}
