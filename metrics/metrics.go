// Package metrics exposes prometheus collectors for the gallery pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "snap_gallery"

type Metrics struct {
	uploads          *prometheus.CounterVec
	deletes          *prometheus.CounterVec
	captionFallbacks *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Image uploads by outcome.",
		}, []string{"outcome"}),
		deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletes_total",
			Help:      "Image deletions by outcome.",
		}, []string{"outcome"}),
		captionFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "caption_fallbacks_total",
			Help:      "Captioning calls that degraded to the fallback title and description.",
		}, []string{"reason"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Latency of external calls made by the gallery pipeline.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}

	reg.MustRegister(m.uploads, m.deletes, m.captionFallbacks, m.stageDuration)
	return m
}

func (m *Metrics) Upload(outcome string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Delete(outcome string) {
	if m == nil {
		return
	}
	m.deletes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CaptionFallback(reason string) {
	if m == nil {
		return
	}
	m.captionFallbacks.WithLabelValues(reason).Inc()
}

// ObserveStage records the time elapsed since start for stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
