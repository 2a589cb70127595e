package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counterLabels and latencyLabels are the fixed label sets of the vectors;
// events that do not carry a label leave it empty.
var (
	counterLabels = []string{"event", "method", "path", "outcome"}
	latencyLabels = []string{"operation", "method", "path"}
)

// PrometheusRecorder exports SDK events as Prometheus metrics.
type PrometheusRecorder struct {
	counters  *prometheus.CounterVec
	histogram *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the SDK metric vectors with the given
// registerer. Pass prometheus.DefaultRegisterer for the global registry.
func NewPrometheusRecorder(reg prometheus.Registerer) Recorder {
	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modexia",
			Name:      "events_total",
			Help:      "Modexia client event counters",
		},
		counterLabels,
	)

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modexia",
			Name:      "latency_seconds",
			Help:      "Modexia client operation latency",
			Buckets:   prometheus.DefBuckets,
		},
		latencyLabels,
	)

	reg.MustRegister(counters, histogram)

	return &PrometheusRecorder{
		counters:  counters,
		histogram: histogram,
	}
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.counters.With(prometheus.Labels{
		"event":   name,
		"method":  labels["method"],
		"path":    labels["path"],
		"outcome": labels["outcome"],
	}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.histogram.With(prometheus.Labels{
		"operation": name,
		"method":    labels["method"],
		"path":      labels["path"],
	}).Observe(d.Seconds())
}
