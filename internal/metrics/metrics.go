// Package metrics exposes Prometheus collectors for the HTTP surface, the
// realtime gateway, notifications and the inference client.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/realqkqk123fr/temp-backend/internal/inference"
)

const namespace = "recipe_bff"

// Metrics holds every collector of the service
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	authFailures  *prometheus.CounterVec
	loginAttempts *prometheus.CounterVec

	activeSessions prometheus.Gauge
	framesTotal    *prometheus.CounterVec

	notificationsDropped *prometheus.CounterVec

	inferenceCalls    *prometheus.CounterVec
	inferenceDuration *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry, together with the Go
// runtime and process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route"}),

		authFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Requests rejected by the authentication gateway",
		}, []string{"code"}),

		loginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by result",
		}, []string{"result"}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_sessions",
			Help:      "Open realtime sessions",
		}),

		framesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_frames_total",
			Help:      "Inbound STOMP frames by command",
		}, []string{"command"}),

		notificationsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Notifications not delivered, by reason",
		}, []string{"reason"}),

		inferenceCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_calls_total",
			Help:      "Calls to the inference service by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),

		inferenceDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_call_duration_seconds",
			Help:      "Inference service call latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"endpoint"}),
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Middleware records request count and latency by route template
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// AuthFailure counts a rejected request
func (m *Metrics) AuthFailure(code string) {
	m.authFailures.WithLabelValues(code).Inc()
}

// LoginAttempt counts a login by result: success, invalid_credentials, timeout, error
func (m *Metrics) LoginAttempt(result string) {
	m.loginAttempts.WithLabelValues(result).Inc()
}

// NotificationDropped counts an undelivered notification
func (m *Metrics) NotificationDropped(reason string) {
	m.notificationsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) SessionOpened()               { m.activeSessions.Inc() }
func (m *Metrics) SessionClosed()               { m.activeSessions.Dec() }
func (m *Metrics) FrameReceived(command string) { m.framesTotal.WithLabelValues(command).Inc() }

// InferenceCall records one inference client call
func (m *Metrics) InferenceCall(endpoint string, err error, elapsed time.Duration) {
	m.inferenceCalls.WithLabelValues(endpoint, outcome(err)).Inc()
	m.inferenceDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, inference.ErrUnavailable):
		return "unavailable"
	case inference.IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
