package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songlinshu/vector/errors"
)

func TestCoreMetricsRegistered(t *testing.T) {
	r := NewMetricsRegistry()

	r.Metrics.OperationsTotal.WithLabelValues("query", "ok").Inc()
	r.Metrics.SubscriptionsActive.Set(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.Metrics.OperationsTotal.WithLabelValues("query", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.Metrics.SubscriptionsActive))
}

func TestRegisterComponentCollector(t *testing.T) {
	r := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vector",
		Subsystem: "pipeline",
		Name:      "ticks_total",
		Help:      "test counter",
	})
	require.NoError(t, r.Register("pipeline", "ticks_total", counter))

	counter.Add(5)
	assert.Equal(t, 5.0, testutil.ToFloat64(counter))

	err := r.Register("pipeline", "ticks_total", counter)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestUnregister(t *testing.T) {
	r := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vector",
		Subsystem: "pipeline",
		Name:      "depth",
		Help:      "test gauge",
	})
	require.NoError(t, r.Register("pipeline", "depth", gauge))

	assert.True(t, r.Unregister("pipeline", "depth"))
	assert.False(t, r.Unregister("pipeline", "depth"))

	// The key is free again after unregistration.
	require.NoError(t, r.Register("pipeline", "depth", gauge))
}

// Two registries never collide: each owns a private Prometheus registry.
func TestRegistriesIsolated(t *testing.T) {
	a := NewMetricsRegistry()
	b := NewMetricsRegistry()

	a.Metrics.ConnectionsTotal.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics.ConnectionsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Metrics.ConnectionsTotal))
}
