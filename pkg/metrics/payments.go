package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records gateway latency and fulfillment outcomes.
type PaymentMetrics struct {
	gatewayDuration *prometheus.HistogramVec
	fulfillments    *prometheus.CounterVec
	webhooks        *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	gatewayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_request_duration_seconds",
		Help:    "Duration of outbound payment gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway", "operation"})
	fulfillments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_fulfillments_total",
		Help: "Order fulfillment attempts by outcome.",
	}, []string{"outcome"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_total",
		Help: "Received payment webhooks by gateway and result.",
	}, []string{"gateway", "result"})
	reg.MustRegister(gatewayDuration, fulfillments, webhooks)
	return &PaymentMetrics{
		gatewayDuration: gatewayDuration,
		fulfillments:    fulfillments,
		webhooks:        webhooks,
	}
}

// ObserveGateway records the duration of one gateway call.
func (p *PaymentMetrics) ObserveGateway(gateway, operation string, duration time.Duration) {
	if p == nil || p.gatewayDuration == nil {
		return
	}
	p.gatewayDuration.WithLabelValues(normalizeLabel(gateway), normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncFulfillment increments the fulfillment counter for the given outcome.
func (p *PaymentMetrics) IncFulfillment(outcome string) {
	if p == nil || p.fulfillments == nil {
		return
	}
	p.fulfillments.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncWebhook increments the webhook counter for the given gateway and result.
func (p *PaymentMetrics) IncWebhook(gateway, result string) {
	if p == nil || p.webhooks == nil {
		return
	}
	p.webhooks.WithLabelValues(normalizeLabel(gateway), normalizeLabel(result)).Inc()
}
