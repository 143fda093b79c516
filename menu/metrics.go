package menu

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parking_pay_request_latency_seconds",
		Help:    "Time the menu engine spends answering a channel request",
		Buckets: prometheus.DefBuckets,
	}, []string{"channel"})

	LookupLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parking_pay_lookup_latency_seconds",
		Help:    "Time spent in vehicle and fee lookups",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	PaymentTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_pay_payment_triggers_total",
		Help: "Push payment requests by channel and collaborator verdict",
	}, []string{"channel", "result"})

	Responses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_pay_responses_total",
		Help: "Responses produced by channel and outcome",
	}, []string{"channel", "outcome"})
)
