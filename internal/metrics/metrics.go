package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace    = "walltok"
	countersName = namespace + "_events_total"
)

type Metrics struct {
	registry  *prometheus.Registry
	durations *prometheus.HistogramVec
	counters  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Duration of store, sync and feed operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"name"})

	counters := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Count of store, sync and feed events.",
	}, []string{"name"})

	registry.MustRegister(durations, counters)

	return &Metrics{
		registry:  registry,
		durations: durations,
		counters:  counters,
	}
}

func NoMetrics() *Metrics {
	return &Metrics{}
}

func (x *Metrics) Close() error {
	return nil
}

// Record starts timing metricName; the returned func stops the timer.
func (x *Metrics) Record(metricName string) func() error {
	if x == nil || x.durations == nil {
		return func() error { return nil }
	}

	start := time.Now()
	observer := x.durations.WithLabelValues(metricName)

	return func() error {
		observer.Observe(time.Since(start).Seconds())
		return nil
	}
}

func (x *Metrics) Increment(metricName string) error {
	if x == nil || x.counters == nil {
		return nil
	}

	x.counters.WithLabelValues(metricName).Inc()

	return nil
}

// Count reports the current value of a counter, mostly useful in tests.
func (x *Metrics) Count(metricName string) float64 {
	if x == nil || x.registry == nil {
		return 0
	}

	families, err := x.registry.Gather()
	if err != nil {
		return 0
	}

	for _, mf := range families {
		if mf.GetName() != countersName {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "name" && label.GetValue() == metricName {
					return m.GetCounter().GetValue()
				}
			}
		}
	}

	return 0
}

func (x *Metrics) Handler() http.Handler {
	if x == nil || x.registry == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(x.registry, promhttp.HandlerOpts{})
}
