// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recollect_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recollect_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	searchesCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recollect_searches_created_total",
			Help: "Total number of bisection searches created",
		},
	)

	searchesCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recollect_searches_completed_total",
			Help: "Total number of searches that received an exact result",
		},
	)

	searchesEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recollect_searches_evicted_total",
			Help: "Total number of idle searches removed by the reaper",
		},
	)

	activeSearches = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "recollect_searches_in_memory",
			Help: "Number of searches currently held by the session store",
		},
	)

	promptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recollect_prompts_total",
			Help: "Prompts generated, by whether a playable recording was found",
		},
		[]string{"strategy", "playable"},
	)

	updatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recollect_search_updates_total",
			Help: "Feedback submitted to searches, by result",
		},
		[]string{"result"},
	)

	catalogLookupSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recollect_catalog_lookup_duration_seconds",
			Help:    "Duration of recording catalog lookups",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	metricsRegistered atomic.Bool
)

// RegisterMetrics registers all collectors with the default registry.
// It is safe to call multiple times.
func RegisterMetrics() {
	if !metricsRegistered.CompareAndSwap(false, true) {
		return
	}
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		searchesCreatedTotal,
		searchesCompletedTotal,
		searchesEvictedTotal,
		activeSearches,
		promptsTotal,
		updatesTotal,
		catalogLookupSeconds,
	)
}

func SearchCreated()            { searchesCreatedTotal.Inc() }
func SearchCompleted()          { searchesCompletedTotal.Inc() }
func SearchesEvicted(n int)     { searchesEvictedTotal.Add(float64(n)) }
func SetSearchesInMemory(n int) { activeSearches.Set(float64(n)) }

func PromptGenerated(strategy string, playable bool) {
	promptsTotal.WithLabelValues(strategy, strconv.FormatBool(playable)).Inc()
}

func UpdateSubmitted(result string) { updatesTotal.WithLabelValues(result).Inc() }

// ObserveCatalogLookup records the duration of a catalog call started at start.
func ObserveCatalogLookup(op string, start time.Time) {
	catalogLookupSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request counts and latency labelled by the mux route template.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := routePath(r)
		if path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		httpRequestDurationSeconds.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// routePath uses the route template to keep label cardinality bounded.
func routePath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}
