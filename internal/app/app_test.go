package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"dv8.transit.org/internal/config"
)

func TestNewWiresApplication(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name        string
		kind        string
		staticURL   string
		wantSource  string
		wantCatalog bool
	}{
		{name: "infopoint", kind: config.SourceInfoPoint, wantSource: config.SourceInfoPoint},
		{name: "gtfsrt without bundle", kind: config.SourceGTFSRealtime, wantSource: config.SourceGTFSRealtime},
		{name: "gtfsrt with bundle", kind: config.SourceGTFSRealtime, staticURL: "https://example.com/gtfs.zip",
			wantSource: config.SourceGTFSRealtime, wantCatalog: true},
		{name: "infopoint ignores bundle", kind: config.SourceInfoPoint, staticURL: "https://example.com/gtfs.zip",
			wantSource: config.SourceInfoPoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			cfg.Env = "testing"
			cfg.DatabaseURL = ":memory:"
			cfg.Source.Kind = tt.kind
			cfg.Source.URL = "https://example.com/feed"
			cfg.Source.StaticURL = tt.staticURL

			app, err := New(context.Background(), cfg, logger, NewPooledClient(cfg.FetchTimeout), "test-version")
			if err != nil {
				t.Fatalf("New returned error: %v", err)
			}
			defer app.Close()

			if got := app.Poller.Source.Name(); got != tt.wantSource {
				t.Errorf("expected source %q, got %q", tt.wantSource, got)
			}
			if (app.Catalog != nil) != tt.wantCatalog {
				t.Errorf("expected catalog %v, got %v", tt.wantCatalog, app.Catalog != nil)
			}
			if app.Poller.Interval != cfg.PollInterval {
				t.Errorf("expected poll interval %v, got %v", cfg.PollInterval, app.Poller.Interval)
			}
			if app.Poller.Publisher != nil {
				t.Error("expected no publisher when no sinks are configured")
			}
			if app.Poller.Tracker != app.Tracker {
				t.Error("expected the poller to feed the application's trip tracker")
			}
			if !app.Resolver.IsExcluded("80") {
				t.Error("expected the default excluded routes to apply")
			}
		})
	}
}

func TestNewRejectsUnknownSource(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.NewConfig()
	cfg.DatabaseURL = ":memory:"
	cfg.Source.Kind = "carrier-pigeon"

	if _, err := New(context.Background(), cfg, logger, NewPooledClient(cfg.FetchTimeout), "test-version"); err == nil {
		t.Fatal("expected an error for an unknown source kind")
	}
}

func TestStartStopsWithContext(t *testing.T) {
	app := newTestApplication(t)
	app.Poller.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	app.Start(ctx, "")

	deadline := time.Now().Add(5 * time.Second)
	for app.Poller.LastSuccess().IsZero() {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("poller did not commit a cycle after Start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
}
