package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dd0wney/cluso-docgraph/pkg/docstore"
)

type pingStore struct {
	docstore.Store
	err error
}

func (p *pingStore) Ping(context.Context) error { return p.err }

func TestReadinessAndLivenessAreSeparate(t *testing.T) {
	c := NewChecker()

	readyCalled, liveCalled := false, false
	c.RegisterReadinessCheck("ready", func(context.Context) Check {
		readyCalled = true
		return Check{Status: StatusHealthy}
	})
	c.RegisterLivenessCheck("live", func(context.Context) Check {
		liveCalled = true
		return Check{Status: StatusHealthy}
	})

	resp := c.CheckLiveness(context.Background())
	if readyCalled || !liveCalled {
		t.Fatalf("liveness ran ready=%v live=%v", readyCalled, liveCalled)
	}
	if _, ok := resp.Checks["live"]; !ok {
		t.Error("live check missing from response")
	}
	if resp.Checks["live"].Name != "live" {
		t.Errorf("check name = %q, want registration name", resp.Checks["live"].Name)
	}

	all := c.Check(context.Background())
	if len(all.Checks) != 2 {
		t.Errorf("Check ran %d probes, want 2", len(all.Checks))
	}
}

func TestWorstStatusWins(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"none", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy beats degraded", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for i, s := range tt.statuses {
				status := s
				c.RegisterReadinessCheck(string(rune('a'+i)), func(context.Context) Check {
					return Check{Status: status}
				})
			}
			if got := c.CheckReadiness(context.Background()).Status; got != tt.want {
				t.Errorf("status = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestProbeDeadline(t *testing.T) {
	c := NewChecker()
	c.SetTimeout(20 * time.Millisecond)
	c.RegisterReadinessCheck("slow", func(ctx context.Context) Check {
		<-ctx.Done()
		return Check{Status: StatusUnhealthy, Message: ctx.Err().Error()}
	})

	start := time.Now()
	resp := c.CheckReadiness(context.Background())
	if time.Since(start) > time.Second {
		t.Fatal("probe deadline not applied")
	}
	if resp.Status != StatusUnhealthy {
		t.Errorf("status = %s, want unhealthy", resp.Status)
	}
}

func TestStoreCheck(t *testing.T) {
	mem := docstore.NewMemoryStore(0)
	defer mem.Close()

	if got := StoreCheck(mem)(context.Background()); got.Status != StatusHealthy {
		t.Errorf("memory store status = %s (%s)", got.Status, got.Message)
	}

	failing := &pingStore{Store: mem, err: errors.New("connection refused")}
	got := StoreCheck(failing)(context.Background())
	if got.Status != StatusUnhealthy {
		t.Errorf("failing ping status = %s", got.Status)
	}
	if got.Message != "connection refused" {
		t.Errorf("message = %q", got.Message)
	}
}

func TestListenerCheck(t *testing.T) {
	up := true
	check := ListenerCheck("inproc://x", func() bool { return up })

	if got := check(context.Background()); got.Status != StatusHealthy || got.Details["addr"] != "inproc://x" {
		t.Errorf("listening check = %+v", got)
	}
	up = false
	if got := check(context.Background()); got.Status != StatusUnhealthy {
		t.Errorf("stopped check status = %s", got.Status)
	}
}

func TestHandlers(t *testing.T) {
	c := NewChecker()
	c.RegisterLivenessCheck("process", Alive("process"))
	c.RegisterReadinessCheck("degraded", func(context.Context) Check {
		return Check{Status: StatusDegraded}
	})

	tests := []struct {
		name    string
		handler http.HandlerFunc
		code    int
		status  Status
	}{
		{"health answers 200 when degraded", c.HTTPHandler(), http.StatusOK, StatusDegraded},
		{"ready is binary", c.ReadinessHandler(), http.StatusServiceUnavailable, StatusDegraded},
		{"live", c.LivenessHandler(), http.StatusOK, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d", rec.Code, tt.code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var resp Response
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.status {
				t.Errorf("status = %s, want %s", resp.Status, tt.status)
			}
		})
	}
}
