package plotter

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"dv8.transit.org/internal/models"
	"dv8.transit.org/internal/render"
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

func openStore(s *store.Store) OpenFunc {
	return func(ctx context.Context) (Snapshot, error) {
		snap, err := s.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		return snap, nil
	}
}

type sample struct {
	at        time.Time
	deviation int
	lat, lon  float64
}

// seedTrip commits one trip with its waypoints, creating the route if needed.
func seedTrip(t *testing.T, s *store.Store, routeCode, routeName, tripCode, runCode string, samples ...sample) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	route, err := tx.FindRouteByCode(ctx, routeCode)
	if err != nil {
		route = &models.Route{Code: routeCode, Name: routeName}
		if err := tx.InsertRoute(ctx, route); err != nil {
			t.Fatalf("insert route: %v", err)
		}
	}
	trip := &models.Trip{RouteID: route.ID, Code: tripCode, RunCode: runCode, Name: "bus " + runCode}
	if err := tx.InsertTrip(ctx, trip); err != nil {
		t.Fatalf("insert trip: %v", err)
	}
	for _, smp := range samples {
		wp := &models.WayPoint{
			TripID:    trip.ID,
			Timestamp: smp.at,
			Latitude:  smp.lat,
			Longitude: smp.lon,
			Deviation: smp.deviation,
			OpStatus:  "ONTIME",
		}
		if err := tx.AppendWaypoint(ctx, wp); err != nil {
			t.Fatalf("append waypoint: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

// capturingRenderer keeps the last chart instead of drawing it.
type capturingRenderer struct {
	chart render.Chart
	calls int
}

func (c *capturingRenderer) Render(_ io.Writer, chart render.Chart) error {
	c.chart = chart
	c.calls++
	return nil
}
