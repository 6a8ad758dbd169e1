package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CallbackMetrics counts gateway callback dispositions by outcome label.
type CallbackMetrics struct {
	outcomes *prometheus.CounterVec
}

// NewCallbackMetrics registers the webhook counters on the provided registerer.
func NewCallbackMetrics(reg prometheus.Registerer) *CallbackMetrics {
	if reg == nil {
		return &CallbackMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "daraja_callback_total",
		Help: "Daraja callbacks received, labeled by processing outcome.",
	}, []string{"outcome"})
	reg.MustRegister(outcomes)
	return &CallbackMetrics{outcomes: outcomes}
}

// IncOutcome increments the counter for the given callback outcome.
func (c *CallbackMetrics) IncOutcome(outcome string) {
	if c == nil || c.outcomes == nil {
		return
	}
	c.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}
