package metrics

import "github.com/prometheus/client_golang/prometheus"

// RouterMetrics exposes counters for the webhook and routing pipeline.
// A nil *RouterMetrics is valid and records nothing.
type RouterMetrics struct {
	webhookEvents   *prometheus.CounterVec
	probes          *prometheus.CounterVec
	outbound        *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	webhookDuration *prometheus.HistogramVec
}

func NewRouterMetrics(reg prometheus.Registerer) *RouterMetrics {
	m := &RouterMetrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "router",
			Name:      "webhook_events_total",
			Help:      "Webhook events processed, by kind and outcome",
		}, []string{"kind", "outcome"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "router",
			Name:      "membership_probes_total",
			Help:      "Project membership probes, by outcome",
		}, []string{"outcome"}),
		outbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "router",
			Name:      "outbound_messages_total",
			Help:      "Messages sent through the Graph API, by kind and outcome",
		}, []string{"kind", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "router",
			Name:      "contact_transitions_total",
			Help:      "Contact routing transitions, by resulting state",
		}, []string{"state"}),
		webhookDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "router",
			Name:      "webhook_duration_seconds",
			Help:      "Time spent processing one webhook payload",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookEvents, m.probes, m.outbound, m.transitions, m.webhookDuration)
	return m
}

func (m *RouterMetrics) ObserveWebhookEvent(kind string, err error) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(kind, outcome(err)).Inc()
}

func (m *RouterMetrics) ObserveWebhookDuration(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookDuration.WithLabelValues(kind).Observe(seconds)
}

// ObserveProbe records one membership probe. outcome is member, absent or error.
func (m *RouterMetrics) ObserveProbe(outcome string) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(outcome).Inc()
}

func (m *RouterMetrics) ObserveOutbound(kind string, err error) {
	if m == nil {
		return
	}
	m.outbound.WithLabelValues(kind, outcome(err)).Inc()
}

func (m *RouterMetrics) ObserveTransition(state string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(state).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
