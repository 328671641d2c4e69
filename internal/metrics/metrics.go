// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"
	"time"

	"github.com/adiadia/concierge/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once

	requestsTotalCounter     *prometheus.CounterVec
	reviewsTotalCounter      *prometheus.CounterVec
	reviewScoreMetric        prometheus.Histogram
	dispatchTotalCounter     *prometheus.CounterVec
	generationDurationMetric prometheus.Histogram
	dispatchRetriesCounter   prometheus.Counter
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		requestsTotalCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "requests_total",
				Help: "Total number of requests reaching a terminal status, by status.",
			},
			[]string{"status"},
		)

		reviewsTotalCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviews_total",
				Help: "Total number of draft reviews by decision.",
			},
			[]string{"decision"},
		)

		reviewScoreMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "review_score",
				Help:    "Distribution of review confidence scores.",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		)

		dispatchTotalCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_total",
				Help: "Total number of gate dispatches by capability and result.",
			},
			[]string{"capability", "result"},
		)

		generationDurationMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "generation_duration_seconds",
				Help:    "Duration of generative fallback calls in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		dispatchRetriesCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dispatch_retries_total",
				Help: "Total number of retried dispatch attempts.",
			},
		)

		prometheus.MustRegister(
			requestsTotalCounter,
			reviewsTotalCounter,
			reviewScoreMetric,
			dispatchTotalCounter,
			generationDurationMetric,
			dispatchRetriesCounter,
		)

		// Ensure counter vectors are visible at /metrics before first increment.
		for _, status := range []domain.RequestStatus{
			domain.RequestPending,
			domain.RequestRunning,
			domain.RequestWaiting,
			domain.RequestSuccess,
			domain.RequestFailed,
			domain.RequestAbandoned,
		} {
			requestsTotalCounter.WithLabelValues(string(status))
		}

		for _, decision := range []string{"approved", "rejected", "deferred"} {
			reviewsTotalCounter.WithLabelValues(decision)
		}
	})
}

func IncRequestStatus(status string) {
	Init()
	requestsTotalCounter.WithLabelValues(status).Inc()
}

func IncReviewDecision(decision string) {
	Init()
	reviewsTotalCounter.WithLabelValues(decision).Inc()
}

func ObserveReviewScore(score float64) {
	Init()
	reviewScoreMetric.Observe(score)
}

func IncDispatch(capability, result string) {
	Init()
	dispatchTotalCounter.WithLabelValues(capability, result).Inc()
}

func ObserveGenerationDuration(d time.Duration) {
	Init()
	generationDurationMetric.Observe(d.Seconds())
}

func IncDispatchRetries() {
	Init()
	dispatchRetriesCounter.Inc()
}
