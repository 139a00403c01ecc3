// Package metrics collects request and application counters and
// exposes them in the Prometheus text format. It is dependency-free on
// purpose; mirroring what a full client library would give us is not
// worth the pull for the handful of series the service emits.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const namespace = "openblog"

// Histogram tracks a latency distribution over fixed buckets.
type Histogram struct {
	mu         sync.Mutex
	count      uint64
	sum        float64
	buckets    []float64
	bucketVals []uint64
}

func NewHistogram() *Histogram {
	return &Histogram{
		buckets:    []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		bucketVals: make([]uint64, 11),
	}
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, b := range h.buckets {
		if v <= b {
			h.bucketVals[i]++
		}
	}
}

// Metrics is the registry of everything the service measures.
type Metrics struct {
	mu sync.RWMutex

	requestCount    map[string]*uint64
	requestDuration map[string]*Histogram
	requestErrors   map[string]*uint64

	wsConnections int64

	counters map[string]*uint64
	gauges   map[string]float64

	startTime time.Time
}

func New() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]*uint64),
		requestDuration: make(map[string]*Histogram),
		requestErrors:   make(map[string]*uint64),
		counters:        make(map[string]*uint64),
		gauges:          make(map[string]float64),
		startTime:       time.Now(),
	}
}

var defaultMetrics = New()

func Default() *Metrics {
	return defaultMetrics
}

// RecordRequest records one handled HTTP request.
func (m *Metrics) RecordRequest(method, path string, statusCode int, duration time.Duration) {
	key := normalizePath(path) + ":" + method

	m.mu.Lock()
	if m.requestCount[key] == nil {
		var zero uint64
		m.requestCount[key] = &zero
	}
	if m.requestDuration[key] == nil {
		m.requestDuration[key] = NewHistogram()
	}
	m.mu.Unlock()

	atomic.AddUint64(m.requestCount[key], 1)

	m.mu.RLock()
	m.requestDuration[key].Observe(duration.Seconds())
	m.mu.RUnlock()

	if statusCode >= 400 {
		errKey := fmt.Sprintf("%s:%d", key, statusCode/100*100)
		m.mu.Lock()
		if m.requestErrors[errKey] == nil {
			var zero uint64
			m.requestErrors[errKey] = &zero
		}
		m.mu.Unlock()
		atomic.AddUint64(m.requestErrors[errKey], 1)
	}
}

// normalizePath collapses identifiers so each route is one series.
// Blog slugs are free-form, so the segment after "blogs" folds to
// {slug} when it is not already an ID.
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	prevBlogs := false
	for i, part := range parts {
		switch {
		case isUUID(part) || (part != "" && isNumeric(part)):
			parts[i] = "{id}"
		case prevBlogs && part != "":
			parts[i] = "{slug}"
		}
		prevBlogs = part == "blogs"
	}
	return strings.Join(parts, "/")
}

func isUUID(s string) bool {
	return len(s) == 36 && strings.Count(s, "-") == 4
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (m *Metrics) IncWSConnections() { atomic.AddInt64(&m.wsConnections, 1) }
func (m *Metrics) DecWSConnections() { atomic.AddInt64(&m.wsConnections, -1) }

func (m *Metrics) SetWSConnections(n int64) {
	atomic.StoreInt64(&m.wsConnections, n)
}

// IncCounter bumps a named application counter, for example
// "blogs_published" or "comments_created".
func (m *Metrics) IncCounter(name string) {
	m.mu.Lock()
	if m.counters[name] == nil {
		var zero uint64
		m.counters[name] = &zero
	}
	m.mu.Unlock()
	atomic.AddUint64(m.counters[name], 1)
}

func (m *Metrics) SetGauge(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = value
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder

		writeHeader(&sb, "uptime_seconds", "Time since the server started", "gauge")
		fmt.Fprintf(&sb, "%s_uptime_seconds %f\n\n", namespace, time.Since(m.startTime).Seconds())

		writeHeader(&sb, "websocket_connections_active", "Open event stream connections", "gauge")
		fmt.Fprintf(&sb, "%s_websocket_connections_active %d\n\n", namespace, atomic.LoadInt64(&m.wsConnections))

		m.mu.RLock()
		defer m.mu.RUnlock()

		if len(m.requestCount) > 0 {
			writeHeader(&sb, "http_requests_total", "Total HTTP requests", "counter")
			for _, key := range sortedKeys(m.requestCount) {
				endpoint, method, ok := strings.Cut(key, ":")
				if !ok {
					continue
				}
				fmt.Fprintf(&sb, "%s_http_requests_total{endpoint=%q,method=%q} %d\n",
					namespace, endpoint, method, atomic.LoadUint64(m.requestCount[key]))
			}
			sb.WriteString("\n")
		}

		if len(m.requestDuration) > 0 {
			writeHeader(&sb, "http_request_duration_seconds", "HTTP request latency", "histogram")
			keys := make([]string, 0, len(m.requestDuration))
			for k := range m.requestDuration {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, key := range keys {
				endpoint, method, ok := strings.Cut(key, ":")
				if !ok {
					continue
				}
				h := m.requestDuration[key]
				h.mu.Lock()
				for i, bucket := range h.buckets {
					fmt.Fprintf(&sb, "%s_http_request_duration_seconds_bucket{endpoint=%q,method=%q,le=\"%g\"} %d\n",
						namespace, endpoint, method, bucket, h.bucketVals[i])
				}
				fmt.Fprintf(&sb, "%s_http_request_duration_seconds_bucket{endpoint=%q,method=%q,le=\"+Inf\"} %d\n",
					namespace, endpoint, method, h.count)
				fmt.Fprintf(&sb, "%s_http_request_duration_seconds_sum{endpoint=%q,method=%q} %f\n",
					namespace, endpoint, method, h.sum)
				fmt.Fprintf(&sb, "%s_http_request_duration_seconds_count{endpoint=%q,method=%q} %d\n",
					namespace, endpoint, method, h.count)
				h.mu.Unlock()
			}
			sb.WriteString("\n")
		}

		if len(m.requestErrors) > 0 {
			writeHeader(&sb, "http_errors_total", "Total HTTP errors by status class", "counter")
			for _, key := range sortedKeys(m.requestErrors) {
				parts := strings.Split(key, ":")
				if len(parts) < 3 {
					continue
				}
				fmt.Fprintf(&sb, "%s_http_errors_total{endpoint=%q,method=%q,status_class=\"%sxx\"} %d\n",
					namespace, parts[0], parts[1], parts[2][:1], atomic.LoadUint64(m.requestErrors[key]))
			}
			sb.WriteString("\n")
		}

		if len(m.counters) > 0 {
			writeHeader(&sb, "events_total", "Application event counters", "counter")
			for _, name := range sortedKeys(m.counters) {
				fmt.Fprintf(&sb, "%s_events_total{event=%q} %d\n",
					namespace, name, atomic.LoadUint64(m.counters[name]))
			}
			sb.WriteString("\n")
		}

		if len(m.gauges) > 0 {
			writeHeader(&sb, "gauge", "Application gauges", "gauge")
			names := make([]string, 0, len(m.gauges))
			for name := range m.gauges {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(&sb, "%s_gauge{name=%q} %f\n", namespace, name, m.gauges[name])
			}
		}

		w.Write([]byte(sb.String()))
	}
}

func writeHeader(sb *strings.Builder, name, help, metricType string) {
	fmt.Fprintf(sb, "# HELP %s_%s %s\n", namespace, name, help)
	fmt.Fprintf(sb, "# TYPE %s_%s %s\n", namespace, name, metricType)
}

func sortedKeys(m map[string]*uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Middleware records metrics for every request it wraps.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			m.RecordRequest(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
		})
	}
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
