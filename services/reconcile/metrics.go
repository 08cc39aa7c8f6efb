package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	applicationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reconcile",
		Name:      "applications_total",
		Help:      "Applications handled by reconciliation runs, by result.",
	}, []string{"result"})

	platformFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reconcile",
		Name:      "platform_fetch_total",
		Help:      "Social platform metric fetches, by platform and outcome.",
	}, []string{"platform", "outcome"})

	earningsCreditedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reconcile",
		Name:      "earnings_credited_minor_units_total",
		Help:      "Realized earnings credited to creators, in minor units.",
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "reconcile",
		Name:      "run_duration_seconds",
		Help:      "Wall time of a reconciliation run.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
	})
)
