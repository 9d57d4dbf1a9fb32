package owm

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewMetrics registers the gateway collectors on reg. A nil reg leaves them
// unregistered, which keeps tests independent of the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "owm_requests_total",
			Help: "Weather API calls by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "owm_request_duration_seconds",
			Help:    "Weather API call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

func (m *Metrics) observe(endpoint string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		var re *RequestError
		if errors.As(err, &re) {
			outcome = re.Kind.label()
		}
	}
	m.requests.WithLabelValues(endpoint, outcome).Inc()
	m.latency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}
