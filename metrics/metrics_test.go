package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Upload("ok")
		m.Delete("ok")
		m.CaptionFallback("http")
		m.ObserveStage("caption", time.Now())
	})
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Upload("ok")
	m.Upload("ok")
	m.Upload("failed")
	m.CaptionFallback("unparsable")
	m.ObserveStage("image_put", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.uploads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploads.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.captionFallbacks.WithLabelValues("unparsable")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.stageDuration))
}
