package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dd0wney/cluso-docgraph/pkg/health"
	"github.com/dd0wney/cluso-docgraph/pkg/logging"
	"github.com/dd0wney/cluso-docgraph/pkg/metrics"
)

func TestOpsRoutes(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.RecordClientRetry()

	checker := health.NewChecker()
	checker.RegisterLivenessCheck("process", health.Alive("process"))
	checker.RegisterReadinessCheck("store", func(context.Context) health.Check {
		return health.Check{Status: health.StatusUnhealthy, Message: "down"}
	})

	s := NewOpsServer(":0", reg, checker, logging.NewNopLogger())

	tests := []struct {
		path     string
		code     int
		contains string
	}{
		{"/metrics", http.StatusOK, "docgraph_client_retries_total"},
		{"/health/live", http.StatusOK, `"status":"healthy"`},
		{"/health/ready", http.StatusServiceUnavailable, `"message":"down"`},
		{"/health", http.StatusServiceUnavailable, `"status":"unhealthy"`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d", rec.Code, tt.code)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body does not contain %q:\n%s", tt.contains, rec.Body.String())
			}
		})
	}
}

func TestOpsServeAndShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := NewOpsServer(l.Addr().String(), metrics.NewRegistry(), nil, logging.NewNopLogger())
	done := make(chan error, 1)
	go func() { done <- s.Serve(l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/health/live")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("code = %d", resp.StatusCode)
	}

	if s.IsShuttingDown() {
		t.Error("shutting down before Shutdown")
	}
	if err := s.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !s.IsShuttingDown() {
		t.Error("not shutting down after Shutdown")
	}
	if err := s.Shutdown(time.Second); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}
