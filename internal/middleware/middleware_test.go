package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/healthcheck", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("expected wrapped status, got %d", rec.Code)
	}
	for _, name := range []string{"X-Content-Type-Options", "Cache-Control", "X-Frame-Options", "Content-Security-Policy"} {
		if rec.Header().Get(name) == "" {
			t.Errorf("missing header %s", name)
		}
	}
}

func TestSentryMiddlewarePassesThrough(t *testing.T) {
	called := false
	h := SentryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !called || rec.Code != http.StatusNoContent {
		t.Fatalf("handler not invoked: called=%v code=%d", called, rec.Code)
	}
}

func TestCachedMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "dv8_test_events_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Add(3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewCachedMetricsHandler(ctx, reg, time.Hour, logger)

	get := func() string {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
			t.Errorf("unexpected content type %q", ct)
		}
		return rec.Body.String()
	}

	if body := get(); !strings.Contains(body, "dv8_test_events_total 3") {
		t.Fatalf("expected gathered counter, got:\n%s", body)
	}

	counter.Inc()
	if body := get(); !strings.Contains(body, "dv8_test_events_total 3") {
		t.Errorf("cached body should not change before ttl, got:\n%s", body)
	}

	before := h.Refreshed()
	h.refresh()
	if h.Refreshed().Before(before) {
		t.Errorf("refresh time went backwards")
	}
	if body := get(); !strings.Contains(body, "dv8_test_events_total 4") {
		t.Errorf("expected refreshed counter, got:\n%s", body)
	}
}
