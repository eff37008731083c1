package counters

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpi",
	Name:      "requests_total",
	Help:      "Total number of OCPI requests by endpoint and OCPI status code.",
}, []string{"endpoint", "method", "status_code"})

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "ocpi",
	Name:      "request_duration_seconds",
	Help:      "Handling time of OCPI requests.",
	Buckets:   prometheus.DefBuckets,
}, []string{"endpoint", "method"})

var upsertCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpi",
	Name:      "resource_writes_total",
	Help:      "Resource writes by kind and outcome.",
}, []string{"kind", "outcome"})

var authorizeCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpi",
	Name:      "authorizations_total",
	Help:      "Authorization decisions by outcome.",
}, []string{"party", "allowed"})

var authorizeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "ocpi",
	Name:      "authorization_runtime_seconds",
	Help:      "Time spent deciding authorization requests.",
	Buckets:   prometheus.DefBuckets,
})

var commandCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpi",
	Name:      "commands_total",
	Help:      "Commands by type and result.",
}, []string{"type", "result"})

var pendingCommandsGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "ocpi",
	Name:      "commands_pending",
	Help:      "Number of commands awaiting their result.",
})

func ObserveRequest(endpoint, method string, statusCode int, duration time.Duration) {
	if len(endpoint) == 0 {
		return
	}
	requestCounter.With(prometheus.Labels{
		"endpoint":    endpoint,
		"method":      method,
		"status_code": strconv.Itoa(statusCode),
	}).Inc()
	requestDuration.With(prometheus.Labels{"endpoint": endpoint, "method": method}).Observe(duration.Seconds())
}

func CountWrite(kind, outcome string) {
	if len(kind) == 0 || len(outcome) == 0 {
		return
	}
	upsertCounter.With(prometheus.Labels{"kind": kind, "outcome": outcome}).Inc()
}

func CountAuthorization(party, allowed string, runtime time.Duration) {
	if len(allowed) == 0 {
		return
	}
	authorizeCounter.With(prometheus.Labels{"party": party, "allowed": allowed}).Inc()
	authorizeDuration.Observe(runtime.Seconds())
}

func CountCommand(commandType, result string) {
	if len(commandType) == 0 || len(result) == 0 {
		return
	}
	commandCounter.With(prometheus.Labels{"type": commandType, "result": result}).Inc()
}

func PendingCommands(count int) {
	pendingCommandsGauge.Set(float64(count))
}
