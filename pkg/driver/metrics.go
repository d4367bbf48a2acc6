package driver

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stumble/whittle/pkg/passes"
)

// Metrics - prometheus collectors updated by a Driver.
type Metrics struct {
	Transforms *prometheus.CounterVec
	Latency    *prometheus.HistogramVec
	Runs       *prometheus.CounterVec
}

// NewMetrics creates the driver collectors named after appName and registers
// them with the default registerer. Registration errors are ignored, so two
// drivers of the same app can coexist.
func NewMetrics(appName string) *Metrics {
	return NewMetricsWith(appName, prometheus.DefaultRegisterer)
}

// NewMetricsWith - NewMetrics on a given registerer, nil to skip registration.
func NewMetricsWith(appName string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transforms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_pass_transforms", appName),
			Help: "Pass transforms by result",
		}, []string{"pass", "result"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%s_pass_transform_seconds", appName),
			Help:    "Pass transform latency",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"pass"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_pass_runs", appName),
			Help: "Driver runs by outcome",
		}, []string{"pass", "outcome"}),
	}
	if reg != nil {
		_ = reg.Register(m.Transforms)
		_ = reg.Register(m.Latency)
		_ = reg.Register(m.Runs)
	}
	return m
}

func (m *Metrics) observeTransform(pass string, result passes.Result, err error, elapsed time.Duration) {
	label := result.String()
	if err != nil {
		label = "fault"
	}
	m.Transforms.WithLabelValues(pass, label).Inc()
	m.Latency.WithLabelValues(pass).Observe(elapsed.Seconds())
}

func (m *Metrics) observeRun(stats Stats, err error) {
	outcome := "exhausted"
	switch {
	case err != nil:
		outcome = "failed"
	case stats.Stopped:
		outcome = "stopped"
	}
	m.Runs.WithLabelValues(stats.Pass, outcome).Inc()
}
