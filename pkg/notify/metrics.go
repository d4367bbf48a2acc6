package notify

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stumble/whittle/pkg/passes"
)

// MetricsNotifier counts pass events by pass and kind.
type MetricsNotifier struct {
	counter *prometheus.CounterVec
}

// NewMetricsNotifier registers the counter with the default registerer,
// ignoring registration errors.
func NewMetricsNotifier(appName string) *MetricsNotifier {
	return NewMetricsNotifierWith(appName, prometheus.DefaultRegisterer)
}

// NewMetricsNotifierWith - reg may be nil to skip registration.
func NewMetricsNotifierWith(appName string, reg prometheus.Registerer) *MetricsNotifier {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: fmt.Sprintf("%s_pass_events", appName),
		Help: "Pass events",
	}, []string{"pass", "kind"})
	if reg != nil {
		_ = reg.Register(counter)
	}
	return &MetricsNotifier{counter: counter}
}

// Notify implements passes.Notifier
func (m *MetricsNotifier) Notify(e passes.Event) {
	m.counter.WithLabelValues(e.Pass, e.Kind.String()).Inc()
}

// Canceled implements passes.Notifier
func (m *MetricsNotifier) Canceled() bool {
	return false
}

// Counter - the underlying collector.
func (m *MetricsNotifier) Counter() *prometheus.CounterVec {
	return m.counter
}
