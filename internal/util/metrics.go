package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_created_total",
		Help: "Total number of payment links created",
	}, []string{"flow"})

	CheckoutsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_failed_total",
		Help: "Total number of checkouts that did not produce a payment link",
	}, []string{"flow", "reason"})

	CheckoutPersistenceDegradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_persistence_degraded_total",
		Help: "Checkouts whose link was created but whose record could not be stored",
	}, []string{"flow"})

	ProviderRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagarme_request_latency_seconds",
		Help:    "Latency of Pagar.me API calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	ProviderRequestsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagarme_requests_failed_total",
		Help: "Total number of failed Pagar.me API calls",
	}, []string{"operation", "kind"})

	WebhooksReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhooks_received_total",
		Help: "Total number of provider webhooks received",
	}, []string{"event_type"})

	WebhooksUnmatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhooks_unmatched_total",
		Help: "Recognized webhooks that carried no routing key",
	})

	ReconcileFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_failures_total",
		Help: "Reconciliation steps that failed",
	}, []string{"step"})

	TransitionsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "status_transitions_rejected_total",
		Help: "Status updates refused by the transition table",
	}, []string{"entity"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
