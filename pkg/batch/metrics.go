package batch

import (
	"time"

	"github.com/chazu/csgray/pkg/rt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors a Run reports into. Create them
// once per registry with NewMetrics.
type Metrics struct {
	// Rays counts rays by outcome: hit, miss_model, miss_prims, miss_bool.
	Rays *prometheus.CounterVec
	// Shots counts primitive Shot calls.
	Shots prometheus.Counter
	// Overlaps counts partitions claimed by several regions.
	Overlaps prometheus.Counter
	// Duration tracks how long each Run takes.
	Duration prometheus.Histogram
}

// NewMetrics registers the csgray collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Rays: f.NewCounterVec(prometheus.CounterOpts{
			Name: "csgray_rays_total",
			Help: "Total rays fired by outcome",
		}, []string{"outcome"}),
		Shots: f.NewCounter(prometheus.CounterOpts{
			Name: "csgray_shots_total",
			Help: "Total primitive intersection calls",
		}),
		Overlaps: f.NewCounter(prometheus.CounterOpts{
			Name: "csgray_overlaps_total",
			Help: "Total partitions claimed by more than one region",
		}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "csgray_run_duration_seconds",
			Help:    "Batch run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		}),
	}
}

func (m *Metrics) observe(s rt.Stats, d time.Duration) {
	m.Rays.WithLabelValues("hit").Add(float64(s.Hits))
	m.Rays.WithLabelValues("miss_model").Add(float64(s.MissModel))
	m.Rays.WithLabelValues("miss_prims").Add(float64(s.MissPrims))
	m.Rays.WithLabelValues("miss_bool").Add(float64(s.MissBool))
	m.Shots.Add(float64(s.Shots))
	m.Overlaps.Add(float64(s.Overlaps))
	m.Duration.Observe(d.Seconds())
}
