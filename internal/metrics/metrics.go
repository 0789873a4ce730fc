// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hacienda"

var (
	Extractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dut_extractions_total",
		Help:      "DUT extractions by source kind and outcome.",
	}, []string{"kind", "outcome"})

	ExtractionConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dut_extraction_confidence",
		Help:      "Confidence score of successful DUT extractions.",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	})

	SalesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sales_created_total",
		Help:      "Sales created by establishment.",
	}, []string{"establishment"})

	Payments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payments_total",
		Help:      "Payment registrations by outcome.",
	}, []string{"outcome"})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sale_transitions_total",
		Help:      "Sale state changes by target state.",
	}, []string{"to"})

	ExchangeLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exchange_lookups_total",
		Help:      "Exchange rate lookups by source (cache, upstream, error).",
	}, []string{"source"})
)
