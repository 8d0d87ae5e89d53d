package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"dv8.transit.org/internal/config"
	"dv8.transit.org/internal/ingest"
	"dv8.transit.org/internal/metrics"
	"dv8.transit.org/internal/models"
	"dv8.transit.org/internal/publisher"
	"dv8.transit.org/internal/store"
)

// stubSource always returns the same snapshots.
type stubSource struct {
	snapshots []models.RouteSnapshot
}

func (stubSource) Name() string { return "stub" }

func (s stubSource) Fetch(context.Context) ([]models.RouteSnapshot, error) {
	return s.snapshots, nil
}

func newTestApplication(t *testing.T) *Application {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.NewConfig()
	cfg.Env = "testing"
	cfg.DatabaseURL = ":memory:"

	db, err := store.Open(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	resolver := ingest.NewResolver(cfg.ExcludedRoutes(), logger)
	poller := ingest.NewPoller(stubSource{}, func(ctx context.Context) (ingest.UnitOfWork, error) {
		tx, err := db.Begin(ctx)
		if err != nil {
			return nil, err
		}
		return tx, nil
	}, resolver, logger)

	return &Application{
		ConfigService: config.NewConfigService(logger, cfg),
		Store:         db,
		Resolver:      resolver,
		Poller:        poller,
		Tracker:       metrics.NewTripTracker(0),
		Publisher:     &publisher.Multi{},
		Logger:        logger,
		Version:       "test-version",
	}
}
