// Package metrics exposes ledger and API metrics to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stakeledger/internal/ledger"
)

const namespace = "stakeledger"

// Registry holds every collector of this process.
var Registry = prometheus.NewRegistry()

var (
	operationCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_operations_total",
		Help:      "Ledger operations by outcome.",
	}, []string{"op", "result"})

	operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ledger_operation_duration_seconds",
		Help:      "Time spent applying a ledger operation.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"op"})

	httpRequestCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"path", "code", "method"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "api_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"path", "method"})

	eventsRelayed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_relayed_total",
		Help:      "Ledger events published to the message queue.",
	})

	eventsIndexed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_indexed_total",
		Help:      "Ledger events consumed by the indexer.",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		operationCount,
		operationDuration,
		httpRequestCount,
		httpRequestDuration,
		eventsRelayed,
		eventsIndexed,
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Recorder feeds ledger operations into the operation metrics.
type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Observe(op string, err error, elapsed time.Duration) {
	operationCount.WithLabelValues(op, Result(err)).Inc()
	operationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Result is the metric label for an operation outcome: "ok", the ledger
// error name, or "internal".
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	var ledgerErr *ledger.Error
	if errors.As(err, &ledgerErr) {
		return ledgerErr.Name
	}
	return "internal"
}

func EventsRelayed(n int) {
	eventsRelayed.Add(float64(n))
}

func EventIndexed(applied bool) {
	if applied {
		eventsIndexed.WithLabelValues("applied").Inc()
		return
	}
	eventsIndexed.WithLabelValues("skipped").Inc()
}

// Middleware records count and latency of every request by route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestCount.WithLabelValues(path, strconv.Itoa(c.Writer.Status()), c.Request.Method).Inc()
		httpRequestDuration.WithLabelValues(path, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
