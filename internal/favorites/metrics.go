package favorites

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	batches  *prometheus.CounterVec
	records  *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics registers the refresh collectors on reg; nil leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		batches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "favorites_refresh_batches_total",
			Help: "Refresh batches by mode and result",
		}, []string{"mode", "result"}),
		records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "favorites_refresh_records_total",
			Help: "Records refreshed by partial-success batches",
		}, []string{"result"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "favorites_refresh_duration_seconds",
			Help:    "Wall time of a refresh batch",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
	}
}

func (m *Metrics) observeBatch(mode string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.batches.WithLabelValues(mode, result).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) observeEach(ok, failed int, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if failed > 0 {
		result = "partial"
	}
	m.batches.WithLabelValues("each", result).Inc()
	m.records.WithLabelValues("ok").Add(float64(ok))
	m.records.WithLabelValues("error").Add(float64(failed))
	m.duration.Observe(elapsed.Seconds())
}
