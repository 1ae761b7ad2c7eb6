// Package metrics exposes Prometheus counters for document writes, uploads,
// unlock attempts and HTTP traffic.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vanesdocs"

// Metrics holds the registry and every collector.
type Metrics struct {
	registry *prometheus.Registry

	documentChanges *prometheus.CounterVec
	uploads         *prometheus.CounterVec
	unlocks         *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	subscribers     prometheus.GaugeFunc
}

// New creates a Metrics with its own registry. subscribers, when non-nil,
// reports the number of live event stream clients.
func New(subscribers func() int) (*Metrics, error) {
	reg := prometheus.NewRegistry()

	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	m := &Metrics{
		registry: reg,
		documentChanges: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "changes_total",
			Help:      "Document writes by kind.",
		}, []string{"kind"}),
		uploads: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "uploads",
			Name:      "total",
			Help:      "Uploads by bucket and result.",
		}, []string{"bucket", "result"}),
		unlocks: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lock",
			Name:      "unlock_attempts_total",
			Help:      "Unlock attempts by result.",
		}, []string{"result"}),
		httpRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	if subscribers != nil {
		m.subscribers = promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "subscribers",
			Help:      "Connected event stream clients.",
		}, func() float64 { return float64(subscribers()) })
	}
	return m, nil
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// DocumentChanged counts a document write.
func (m *Metrics) DocumentChanged(kind string) {
	m.documentChanges.WithLabelValues(kind).Inc()
}

// Upload counts an upload attempt.
func (m *Metrics) Upload(bucket string, err error) {
	m.uploads.WithLabelValues(bucket, result(err == nil)).Inc()
}

// Unlock counts an unlock attempt.
func (m *Metrics) Unlock(ok bool) {
	m.unlocks.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// Middleware records request counts and latency labelled by the chi route
// pattern, so ids do not explode the label set.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
