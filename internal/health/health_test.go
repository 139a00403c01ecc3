package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLivenessAlwaysHealthy(t *testing.T) {
	checker := NewChecker(CheckerConfig{Version: "test"})
	handler := NewHandler(checker)

	rec := httptest.NewRecorder()
	handler.Liveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != StatusHealthy {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Version != "test" {
		t.Errorf("version = %q, want test", resp.Version)
	}
}

func TestReadinessWithoutDatabase(t *testing.T) {
	checker := NewChecker(CheckerConfig{})
	handler := NewHandler(checker)

	rec := httptest.NewRecorder()
	handler.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != StatusUnhealthy {
		t.Errorf("status = %q, want unhealthy", resp.Status)
	}
	if resp.Components["database"].Status != StatusUnhealthy {
		t.Errorf("database = %q, want unhealthy", resp.Components["database"].Status)
	}
}

func TestOptionalDependencyStates(t *testing.T) {
	tests := []struct {
		name  string
		check CheckFunc
		want  Status
	}{
		{"not configured", nil, StatusDegraded},
		{"reachable", func(ctx context.Context) error { return nil }, StatusHealthy},
		{"failing", func(ctx context.Context) error { return errors.New("connection refused") }, StatusDegraded},
	}

	checker := NewChecker(CheckerConfig{Timeout: time.Second})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checker.checkOptional(t.Context(), tt.check)
			if got.Status != tt.want {
				t.Errorf("status = %q, want %q", got.Status, tt.want)
			}
		})
	}
}

func TestDeepCheckRunsAllComponents(t *testing.T) {
	checker := NewChecker(CheckerConfig{
		Cache:   func(ctx context.Context) error { return nil },
		Storage: func(ctx context.Context) error { return nil },
	})

	resp := checker.DeepCheck(t.Context())
	for _, name := range []string{"database", "cache", "storage"} {
		if _, ok := resp.Components[name]; !ok {
			t.Errorf("missing component %q", name)
		}
	}
	// No database configured, so the overall status is unhealthy even
	// though the optional dependencies are fine.
	if resp.Status != StatusUnhealthy {
		t.Errorf("status = %q, want unhealthy", resp.Status)
	}
}
