package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration *prom.HistogramVec
	buildDuration prom.Histogram
	buildOutcome  *prom.CounterVec
	activeBuilds  prom.Gauge
}

// NewPrometheusRecorder constructs and registers the pipeline metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "apkbuilder",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "apkbuilder",
			Name:      "build_duration_seconds",
			Help:      "Total pipeline duration per build",
			Buckets:   prom.ExponentialBuckets(1, 2, 12),
		}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "apkbuilder",
			Name:      "build_outcomes_total",
			Help:      "Terminal build outcomes",
		}, []string{"outcome"}),
		activeBuilds: prom.NewGauge(prom.GaugeOpts{
			Namespace: "apkbuilder",
			Name:      "active_builds",
			Help:      "Pipelines currently holding a worker slot",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.buildOutcome, pr.activeBuilds)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	p.buildOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) SetActiveBuilds(n int) {
	p.activeBuilds.Set(float64(n))
}
