package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives gateway and auth observations. The API client and the
// auth context only depend on this interface.
type Recorder interface {
	RecordRequest(group, operation string, statusCode int, duration time.Duration)
	RecordAuthEvent(event string)
}

// Collector is the Prometheus backed Recorder.
type Collector struct {
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	authEvents *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swingsense_api_requests_total",
			Help: "Backend API calls by operation group, operation and status code.",
		}, []string{"group", "operation", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "swingsense_api_request_duration_seconds",
			Help:    "Backend API round trip latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"group", "operation"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swingsense_auth_events_total",
			Help: "Session changes applied by the auth context.",
		}, []string{"event"}),
	}

	reg.MustRegister(c.requests, c.latency, c.authEvents)
	return c
}

// RecordRequest counts one API round trip. A zero status code means the call
// never produced an HTTP response.
func (c *Collector) RecordRequest(group, operation string, statusCode int, duration time.Duration) {
	status := "transport_error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	c.requests.WithLabelValues(group, operation, status).Inc()
	c.latency.WithLabelValues(group, operation).Observe(duration.Seconds())
}

func (c *Collector) RecordAuthEvent(event string) {
	c.authEvents.WithLabelValues(event).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards every observation.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordRequest(string, string, int, time.Duration) {}
func (Nop) RecordAuthEvent(string)                           {}
