package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"dv8.transit.org/internal/models"
	"dv8.transit.org/internal/publisher"
	"dv8.transit.org/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMemoryStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), ":memory:", discardLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func storeBegin(s *store.Store) BeginFunc {
	return func(ctx context.Context) (UnitOfWork, error) {
		tx, err := s.Begin(ctx)
		if err != nil {
			return nil, err
		}
		return tx, nil
	}
}

func reading(tripCode, runCode string, lat, lon float64) models.VehicleReading {
	return models.VehicleReading{
		TripCode:  models.StringField(tripCode),
		RunCode:   models.StringField(runCode),
		Name:      "bus " + runCode,
		Latitude:  models.NumberField(lat),
		Longitude: models.NumberField(lon),
		Deviation: models.IntField(2),
		OpStatus:  "LATE",
		OnBoard:   models.IntField(5),
		Direction: "Inbound",
	}
}

func snapshot(code int64, name string, vehicles ...models.VehicleReading) models.RouteSnapshot {
	return models.RouteSnapshot{Code: models.IntField(code), Name: name, Vehicles: vehicles}
}

// fakeSource returns queued responses in order and repeats the last one.
type fakeSource struct {
	mu        sync.Mutex
	responses [][]models.RouteSnapshot
	errs      []error
	calls     int
	fetched   chan struct{}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(ctx context.Context) ([]models.RouteSnapshot, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	f.mu.Unlock()

	if f.fetched != nil {
		select {
		case f.fetched <- struct{}{}:
		default:
		}
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if len(f.responses) == 0 {
		return nil, nil
	}
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}

// failingUnit wraps a UnitOfWork and fails the nth waypoint append.
type failingUnit struct {
	UnitOfWork
	failOnAppend int
	appends      int
	rolledBack   bool
}

var errInjected = errors.New("injected store failure")

func (f *failingUnit) AppendWaypoint(ctx context.Context, wp *models.WayPoint) error {
	f.appends++
	if f.appends == f.failOnAppend {
		return errInjected
	}
	return f.UnitOfWork.AppendWaypoint(ctx, wp)
}

func (f *failingUnit) Rollback() error {
	f.rolledBack = true
	return f.UnitOfWork.Rollback()
}

type recordingPublisher struct {
	events []publisher.WaypointEvent
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, ev publisher.WaypointEvent) error {
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingPublisher) Close() error { return nil }

// counts returns the number of routes, trips and waypoints committed to s.
func counts(t *testing.T, s *store.Store) (routes, trips, waypoints int) {
	t.Helper()
	ctx := context.Background()
	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	defer snap.Close()

	rs, err := snap.Routes(ctx)
	if err != nil {
		t.Fatalf("routes: %v", err)
	}
	for _, r := range rs {
		ts, err := snap.TripsForRoute(ctx, r.ID)
		if err != nil {
			t.Fatalf("trips: %v", err)
		}
		trips += len(ts)
		for _, tr := range ts {
			wps, err := snap.WaypointsForTrip(ctx, tr.ID)
			if err != nil {
				t.Fatalf("waypoints: %v", err)
			}
			waypoints += len(wps)
		}
	}
	return len(rs), trips, waypoints
}
