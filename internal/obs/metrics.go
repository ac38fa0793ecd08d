package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	directoryLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_lookups_total",
			Help: "LDAP directory lookups by outcome.",
		},
		[]string{"outcome"},
	)

	tenantBinds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_binds_total",
			Help: "Per-request tenant database binds by outcome.",
		},
		[]string{"outcome"},
	)

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the readiness probe last succeeded.",
	})
)

// Init registers metrics with the default registry.
func Init() {
	prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
		directoryLookups, tenantBinds, ready)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetReady records the latest readiness probe result.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
	} else {
		ready.Set(0)
	}
}

// ObserveDirectoryLookup counts a directory lookup outcome
// (ok, miss or unavailable).
func ObserveDirectoryLookup(outcome string) {
	directoryLookups.WithLabelValues(outcome).Inc()
}

// ObserveTenantBind counts a tenant bind outcome (ok or failed).
func ObserveTenantBind(outcome string) {
	tenantBinds.WithLabelValues(outcome).Inc()
}

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses tenant prefixes and resource identifiers so the
// path label stays low-cardinality. Tenant-scoped paths become
// /:instance/:organism/<resource>/:id.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" || p == "/" {
		return "/"
	}
	segs := strings.Split(strings.Trim(p, "/"), "/")

	switch segs[0] {
	case "healthz", "readyz", "metrics", "v1", "login", "logout":
		return p
	case "arcturus":
		if len(segs) >= 2 {
			return "/arcturus/:instance"
		}
		return p
	}

	// /{instance}/{organism}/resource[/{id}[/action]]
	if len(segs) < 3 {
		return p
	}
	out := []string{"", ":instance", ":organism", segs[2]}
	if len(segs) >= 4 {
		out = append(out, ":id")
	}
	if len(segs) >= 5 {
		out = append(out, segs[4])
	}
	return strings.Join(out, "/")
}

// statusWriter captures the response code for labelling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
