package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// KernelMetrics records saga outcomes and flow commits.
// A nil *KernelMetrics is valid and records nothing.
type KernelMetrics struct {
	purchases     *prometheus.CounterVec
	sagaDuration  *prometheus.HistogramVec
	compensations *prometheus.CounterVec
	decisions     *prometheus.CounterVec
	flows         *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// NewKernelMetrics registers the kernel metrics on the provided registerer.
func NewKernelMetrics(reg prometheus.Registerer) *KernelMetrics {
	if reg == nil {
		return &KernelMetrics{}
	}
	purchases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vending_purchases_total",
		Help: "Purchase attempts by terminal outcome.",
	}, []string{"outcome"})
	sagaDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vending_purchase_duration_seconds",
		Help:    "Duration of purchase sagas in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	compensations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vending_compensations_total",
		Help: "Compensating credits issued by the purchase saga.",
	}, []string{"result"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vending_payment_decisions_total",
		Help: "Administrator decisions on payment requests.",
	}, []string{"decision", "result"})
	flows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vending_flow_terminals_total",
		Help: "Conversation flows reaching their terminal step.",
	}, []string{"flow", "result"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vending_notifications_total",
		Help: "Outbound notifications to the chat gateway.",
	}, []string{"event", "result"})
	reg.MustRegister(purchases, sagaDuration, compensations, decisions, flows, notifications)
	return &KernelMetrics{
		purchases:     purchases,
		sagaDuration:  sagaDuration,
		compensations: compensations,
		decisions:     decisions,
		flows:         flows,
		notifications: notifications,
	}
}

// ObservePurchase records a finished purchase saga.
func (m *KernelMetrics) ObservePurchase(outcome string, duration time.Duration) {
	if m == nil || m.purchases == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	m.purchases.WithLabelValues(outcome).Inc()
	m.sagaDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// IncCompensation records a compensating credit attempt.
func (m *KernelMetrics) IncCompensation(result string) {
	if m == nil || m.compensations == nil {
		return
	}
	m.compensations.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncDecision records a payment decision attempt.
func (m *KernelMetrics) IncDecision(decision, result string) {
	if m == nil || m.decisions == nil {
		return
	}
	m.decisions.WithLabelValues(normalizeLabel(decision), normalizeLabel(result)).Inc()
}

// IncFlowTerminal records a flow's terminal kernel call.
func (m *KernelMetrics) IncFlowTerminal(flow, result string) {
	if m == nil || m.flows == nil {
		return
	}
	m.flows.WithLabelValues(normalizeLabel(flow), normalizeLabel(result)).Inc()
}

// IncNotification records an outbound notification attempt.
func (m *KernelMetrics) IncNotification(event, result string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(event), normalizeLabel(result)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
