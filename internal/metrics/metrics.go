// Package metrics owns the prometheus registry for the service: HTTP
// request metrics, form submission outcomes and process health gauges.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keithlinneman/sampleform/internal/version"
)

// Namespace prefixes every service metric; go_* and process_* keep their
// standard names.
const Namespace = "sampleform"

var (
	latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	// 64B .. 1MiB
	sizeBuckets = prometheus.ExponentialBuckets(64, 4, 8)
)

type ServerMetrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	// http, labelled by method and chi route pattern only
	inflight       prometheus.Gauge
	reqTotal       *prometheus.CounterVec
	reqDur         *prometheus.HistogramVec
	respBytes      *prometheus.HistogramVec
	errorsTotal    *prometheus.CounterVec
	httpPanicTotal prometheus.Counter

	ratelimitDenied   prometheus.Counter
	ratelimitCapacity prometheus.Counter

	formSubmissions *prometheus.CounterVec

	buildInfo       *prometheus.GaugeVec
	profilingActive prometheus.Gauge
}

// New builds an isolated registry so tests and multiple servers never share
// collectors.
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &ServerMetrics{reg: reg}

	m.inflight = f.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace, Subsystem: "http", Name: "inflight_requests",
		Help: "Requests currently being served.",
	})
	m.reqTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace, Subsystem: "http", Name: "requests_total",
		Help: "Requests by method, route and status.",
	}, []string{"method", "route", "status"})
	m.reqDur = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace, Subsystem: "http", Name: "request_duration_seconds",
		Help: "Request latency by method and route.", Buckets: latencyBuckets,
	}, []string{"method", "route"})
	m.respBytes = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace, Subsystem: "http", Name: "response_size_bytes",
		Help: "Response body size by method and route.", Buckets: sizeBuckets,
	}, []string{"method", "route"})
	m.errorsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace, Subsystem: "http", Name: "errors_total",
		Help: "5xx responses by method and route.",
	}, []string{"method", "route"})
	m.httpPanicTotal = f.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace, Subsystem: "http", Name: "panic_total",
		Help: "Recovered handler panics.",
	})

	m.ratelimitDenied = f.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace, Subsystem: "http", Name: "requests_rate_limited_total",
		Help: "Requests rejected by the per-client limiter.",
	})
	m.ratelimitCapacity = f.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace, Subsystem: "http", Name: "requests_rate_limited_capacity_total",
		Help: "Times the limiter refused a new client because it tracks too many.",
	})

	m.formSubmissions = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace, Name: "form_submissions_total",
		Help: "Sample form submissions by outcome.",
	}, []string{"result"})

	m.buildInfo = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace, Name: "build_info",
		Help: "Build metadata; the value is always 1.",
	}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"})
	m.profilingActive = f.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace, Name: "profiling_active",
		Help: "1 while the continuous profiler is running.",
	})

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
	return m
}

func (m *ServerMetrics) Handler() http.Handler { return m.handler }

func (m *ServerMetrics) IncHttpPanic()         { m.httpPanicTotal.Inc() }
func (m *ServerMetrics) IncRateLimitDenied()   { m.ratelimitDenied.Inc() }
func (m *ServerMetrics) IncRateLimitCapacity() { m.ratelimitCapacity.Inc() }

// IncFormSubmission counts one submission outcome (see sampleform.Result*).
func (m *ServerMetrics) IncFormSubmission(result string) {
	m.formSubmissions.WithLabelValues(result).Inc()
}

// SetBuildInfoFromVersion publishes the build labels; call once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(component string, vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.WithLabelValues(
		version.App, component, vi.Version, vi.Commit, vi.CommitDate,
		vi.BuildID, vi.BuildDate, dirty, vi.GoVersion,
	).Set(1)
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	v := 0.0
	if active {
		v = 1
	}
	m.profilingActive.Set(v)
}
