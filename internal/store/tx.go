package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dv8.transit.org/internal/models"
)

// Tx is one unit of work on the write path. Rows inserted through a Tx are
// visible to later lookups on the same Tx and become durable on Commit.
type Tx struct {
	tx *sql.Tx
	s  *Store
}

// Begin starts a write unit of work.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx, s: s}, nil
}

// Commit makes every staged change durable.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards every staged change. Rolling back a finished Tx is a no-op.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// FindRouteByCode looks up a route by its feed code.
func (t *Tx) FindRouteByCode(ctx context.Context, code string) (*models.Route, error) {
	var r models.Route
	err := t.tx.QueryRowContext(ctx,
		t.s.rebind(`SELECT id, code, name FROM routes WHERE code = ?`), code,
	).Scan(&r.ID, &r.Code, &r.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find route %q: %w", code, err)
	}
	return &r, nil
}

// InsertRoute stores r and sets its ID.
func (t *Tx) InsertRoute(ctx context.Context, r *models.Route) error {
	err := t.tx.QueryRowContext(ctx,
		t.s.rebind(`INSERT INTO routes (code, name) VALUES (?, ?) RETURNING id`),
		r.Code, r.Name,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("insert route %q: %w", r.Code, err)
	}
	return nil
}

// FindTripByKeys looks up a trip by its natural key.
func (t *Tx) FindTripByKeys(ctx context.Context, routeID int64, code, runCode string) (*models.Trip, error) {
	var trip models.Trip
	err := t.tx.QueryRowContext(ctx,
		t.s.rebind(`SELECT id, route_id, code, run_code, name FROM trips WHERE route_id = ? AND code = ? AND run_code = ?`),
		routeID, code, runCode,
	).Scan(&trip.ID, &trip.RouteID, &trip.Code, &trip.RunCode, &trip.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find trip %q/%q on route %d: %w", code, runCode, routeID, err)
	}
	return &trip, nil
}

// InsertTrip stores trip and sets its ID.
func (t *Tx) InsertTrip(ctx context.Context, trip *models.Trip) error {
	err := t.tx.QueryRowContext(ctx,
		t.s.rebind(`INSERT INTO trips (code, name, run_code, route_id) VALUES (?, ?, ?, ?) RETURNING id`),
		trip.Code, trip.Name, trip.RunCode, trip.RouteID,
	).Scan(&trip.ID)
	if err != nil {
		return fmt.Errorf("insert trip %q/%q: %w", trip.Code, trip.RunCode, err)
	}
	return nil
}

// AppendWaypoint stores wp and sets its ID.
func (t *Tx) AppendWaypoint(ctx context.Context, wp *models.WayPoint) error {
	driver := sql.NullString{String: wp.Driver, Valid: wp.Driver != ""}
	err := t.tx.QueryRowContext(ctx,
		t.s.rebind(`INSERT INTO waypoints
			(recorded_at, latitude, longitude, deviation, op_status, on_board, direction, driver, trip_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		wp.Timestamp, wp.Latitude, wp.Longitude, wp.Deviation, wp.OpStatus, wp.OnBoard, wp.Direction, driver, wp.TripID,
	).Scan(&wp.ID)
	if err != nil {
		return fmt.Errorf("append waypoint to trip %d: %w", wp.TripID, err)
	}
	return nil
}
