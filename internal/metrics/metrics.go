// Package metrics holds the Prometheus collectors of the clientraw service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// buildsTotal counts record builds by kind and outcome.
	buildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientraw_builds_total",
		Help: "Total number of record builds",
	}, []string{"kind", "outcome"})

	// buildDuration measures the time from build start to the last sink write.
	buildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clientraw_build_duration_seconds",
		Help:    "Record build duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// fieldFallbacks counts fields rendered from a fallback instead of a value.
	fieldFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientraw_field_fallbacks_total",
		Help: "Total number of field values replaced by a fallback",
	}, []string{"kind", "reason"})

	// ingestRequests counts ingest requests by response status.
	ingestRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientraw_ingest_requests_total",
		Help: "Total number of ingest requests",
	}, []string{"status"})

	// sinkFailures counts failed sink writes.
	sinkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientraw_sink_failures_total",
		Help: "Total number of failed sink writes",
	}, []string{"sink"})

	// observationsReceived counts loop packets accepted from the trigger.
	observationsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clientraw_observations_received_total",
		Help: "Total number of loop packets stored",
	})

	// conditionsRefresh counts conditions refreshes by outcome.
	conditionsRefresh = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientraw_conditions_refresh_total",
		Help: "Total number of conditions provider refreshes",
	}, []string{"outcome"})
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordBuild records one finished build.
func RecordBuild(kind string, d time.Duration, err error) {
	buildsTotal.WithLabelValues(kind, outcome(err)).Inc()
	buildDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordBuildSkipped records a build suppressed by the minimum interval.
func RecordBuildSkipped(kind string) {
	buildsTotal.WithLabelValues(kind, "skipped").Inc()
}

// RecordFallbacks adds the fallback counts of one build.
func RecordFallbacks(kind string, counts map[string]int) {
	for reason, n := range counts {
		if n > 0 {
			fieldFallbacks.WithLabelValues(kind, reason).Add(float64(n))
		}
	}
}

// RecordIngest records one ingest response.
func RecordIngest(status int) {
	ingestRequests.WithLabelValues(strconv.Itoa(status)).Inc()
}

// RecordSinkFailure records a failed write to the named sink.
func RecordSinkFailure(sink string) {
	sinkFailures.WithLabelValues(sink).Inc()
}

// RecordObservation records a stored loop packet.
func RecordObservation() {
	observationsReceived.Inc()
}

// RecordConditionsRefresh records a conditions refresh.
func RecordConditionsRefresh(err error) {
	conditionsRefresh.WithLabelValues(outcome(err)).Inc()
}
