package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/blogs", "/api/v1/blogs"},
		{"/api/v1/blogs/my-first-post", "/api/v1/blogs/{slug}"},
		{"/api/v1/blogs/3b241101-e2bb-4255-8caf-4136c566a962/like", "/api/v1/blogs/{id}/like"},
		{"/api/v1/comments/42", "/api/v1/comments/{id}"},
		{"/api/v1/auth/login", "/api/v1/auth/login"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestRecordRequestAndExposition(t *testing.T) {
	m := New()
	m.RecordRequest(http.MethodGet, "/api/v1/blogs", http.StatusOK, 20*time.Millisecond)
	m.RecordRequest(http.MethodGet, "/api/v1/blogs", http.StatusOK, 40*time.Millisecond)
	m.RecordRequest(http.MethodPost, "/api/v1/auth/login", http.StatusUnauthorized, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler()(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`openblog_http_requests_total{endpoint="/api/v1/blogs",method="GET"} 2`,
		`openblog_http_requests_total{endpoint="/api/v1/auth/login",method="POST"} 1`,
		`openblog_http_errors_total{endpoint="/api/v1/auth/login",method="POST",status_class="4xx"} 1`,
		`openblog_http_request_duration_seconds_count{endpoint="/api/v1/blogs",method="GET"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestCountersAndGauges(t *testing.T) {
	m := New()
	m.IncCounter("blogs_published")
	m.IncCounter("blogs_published")
	m.SetGauge("cache_hit_ratio", 0.75)
	m.IncWSConnections()

	rec := httptest.NewRecorder()
	m.Handler()(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`openblog_events_total{event="blogs_published"} 2`,
		`openblog_gauge{name="cache_hit_ratio"} 0.750000`,
		`openblog_websocket_connections_active 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	m := New()
	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/blogs/missing-post", nil))

	recExpo := httptest.NewRecorder()
	m.Handler()(recExpo, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := recExpo.Body.String()

	want := `openblog_http_errors_total{endpoint="/api/v1/blogs/{slug}",method="GET",status_class="4xx"} 1`
	if !strings.Contains(body, want) {
		t.Errorf("exposition missing %q", want)
	}
}

func TestHistogramBuckets(t *testing.T) {
	h := NewHistogram()
	h.Observe(0.003)
	h.Observe(0.2)
	h.Observe(30)

	if h.count != 3 {
		t.Errorf("count = %d, want 3", h.count)
	}
	// 0.003 lands in every bucket; 0.2 from 0.25 up; 30 in none.
	if h.bucketVals[0] != 1 {
		t.Errorf("le=0.005 = %d, want 1", h.bucketVals[0])
	}
	if h.bucketVals[5] != 2 {
		t.Errorf("le=0.25 = %d, want 2", h.bucketVals[5])
	}
}
