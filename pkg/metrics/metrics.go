package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amoylab/janus/internal/common/config"
)

// Call outcomes used as the status label
const (
	StatusOK             = "ok"
	StatusTimeout        = "timeout"
	StatusConnectionLost = "connection_lost"
	StatusRemoteError    = "remote_error"
	StatusCanceled       = "canceled"
	StatusError          = "error"
)

// Metrics holds the prometheus collectors of one client. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry  *prometheus.Registry
	namespace string

	httpReqCnt *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec
	httpInfl   *prometheus.GaugeVec

	callCnt  *prometheus.CounterVec
	callDur  *prometheus.HistogramVec
	callInfl *prometheus.GaugeVec

	eventsDispatched *prometheus.CounterVec
	eventsDropped    *prometheus.CounterVec
	diagnostics      *prometheus.CounterVec
	reconnects       *prometheus.CounterVec
	sessions         prometheus.Gauge
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	// Register standard process and Go collectors
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: cfg.Buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	callCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "calls_total", Help: "Protocol calls by method and outcome."}, []string{"method", "status"})
	callDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "call_duration_seconds", Buckets: cfg.Buckets}, []string{"method"})
	callInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "calls_inflight"}, []string{"method"})
	r.MustRegister(callCnt, callDur, callInfl)

	eventsDispatched := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "events_dispatched_total"}, []string{"domain"})
	eventsDropped := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "events_dropped_total", Help: "Events discarded because a subscriber buffer was full."}, []string{"domain"})
	diagnostics := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "diagnostics_total"}, []string{"kind"})
	reconnects := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "reconnects_total"}, []string{"outcome"})
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "sessions_attached"})
	r.MustRegister(eventsDispatched, eventsDropped, diagnostics, reconnects, sessions)

	return &Metrics{
		registry:         r,
		namespace:        ns,
		httpReqCnt:       httpReqCnt,
		httpDur:          httpDur,
		httpInfl:         httpInfl,
		callCnt:          callCnt,
		callDur:          callDur,
		callInfl:         callInfl,
		eventsDispatched: eventsDispatched,
		eventsDropped:    eventsDropped,
		diagnostics:      diagnostics,
		reconnects:       reconnects,
		sessions:         sessions,
	}
}

func (m *Metrics) CallStart(method string) {
	if m == nil {
		return
	}
	m.callInfl.WithLabelValues(method).Inc()
}

func (m *Metrics) CallDone(method, status string, since time.Time) {
	if m == nil {
		return
	}
	m.callCnt.WithLabelValues(method, status).Inc()
	m.callDur.WithLabelValues(method).Observe(time.Since(since).Seconds())
	m.callInfl.WithLabelValues(method).Dec()
}

// EventDispatched implements router.Observer
func (m *Metrics) EventDispatched(domain string) {
	if m == nil {
		return
	}
	m.eventsDispatched.WithLabelValues(domain).Inc()
}

// EventDropped implements router.Observer
func (m *Metrics) EventDropped(domain string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(domain).Inc()
}

func (m *Metrics) Diagnostic(kind string) {
	if m == nil {
		return
	}
	m.diagnostics.WithLabelValues(kind).Inc()
}

func (m *Metrics) Reconnect(outcome string) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
