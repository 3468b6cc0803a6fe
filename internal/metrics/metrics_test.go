package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCount(t *testing.T) {
	mx := NewMetrics()

	_ = mx.Increment("cloud.broadcast")
	_ = mx.Increment("cloud.broadcast")
	_ = mx.Increment("feed.stale")

	assert.Equal(t, float64(2), mx.Count("cloud.broadcast"))
	assert.Equal(t, float64(1), mx.Count("feed.stale"))
	assert.Zero(t, mx.Count("never.incremented"))
}

func TestNoMetricsIsInert(t *testing.T) {
	var unset *Metrics

	for _, mx := range []*Metrics{NoMetrics(), unset} {
		assert.NoError(t, mx.Increment("feed.refreshed"))
		assert.NoError(t, mx.Record("feed.refresh")())
		assert.Zero(t, mx.Count("feed.refreshed"))
	}
}
