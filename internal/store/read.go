package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dv8.transit.org/internal/models"
)

// ReadTx is a read-only view of the store. Every query made through one
// ReadTx sees the same snapshot, so a report pass stays consistent while the
// poller keeps committing.
type ReadTx struct {
	tx *sql.Tx
	s  *Store
}

// Snapshot opens a read-only view. Callers must Close it.
func (s *Store) Snapshot(ctx context.Context) (*ReadTx, error) {
	var opts *sql.TxOptions
	if s.dialect == Postgres {
		opts = &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead}
	}
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	return &ReadTx{tx: tx, s: s}, nil
}

// Close ends the snapshot.
func (r *ReadTx) Close() error {
	if err := r.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// Routes returns every route in creation order.
func (r *ReadTx) Routes(ctx context.Context) ([]models.Route, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT id, code, name FROM routes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	defer rows.Close()

	var routes []models.Route
	for rows.Next() {
		var route models.Route
		if err := rows.Scan(&route.ID, &route.Code, &route.Name); err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		routes = append(routes, route)
	}
	return routes, rows.Err()
}

// TripsForRoute returns the trips of a route in creation order.
func (r *ReadTx) TripsForRoute(ctx context.Context, routeID int64) ([]models.Trip, error) {
	rows, err := r.tx.QueryContext(ctx,
		r.s.rebind(`SELECT id, route_id, code, run_code, name FROM trips WHERE route_id = ? ORDER BY id`),
		routeID)
	if err != nil {
		return nil, fmt.Errorf("list trips for route %d: %w", routeID, err)
	}
	defer rows.Close()

	var trips []models.Trip
	for rows.Next() {
		var t models.Trip
		if err := rows.Scan(&t.ID, &t.RouteID, &t.Code, &t.RunCode, &t.Name); err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

// WaypointsForTrip returns the waypoints of a trip in insertion order.
func (r *ReadTx) WaypointsForTrip(ctx context.Context, tripID int64) ([]models.WayPoint, error) {
	rows, err := r.tx.QueryContext(ctx,
		r.s.rebind(`SELECT id, trip_id, recorded_at, latitude, longitude, deviation, op_status, on_board, direction, driver
			FROM waypoints WHERE trip_id = ? ORDER BY id`),
		tripID)
	if err != nil {
		return nil, fmt.Errorf("list waypoints for trip %d: %w", tripID, err)
	}
	defer rows.Close()

	var waypoints []models.WayPoint
	for rows.Next() {
		var wp models.WayPoint
		var driver sql.NullString
		if err := rows.Scan(&wp.ID, &wp.TripID, &wp.Timestamp, &wp.Latitude, &wp.Longitude,
			&wp.Deviation, &wp.OpStatus, &wp.OnBoard, &wp.Direction, &driver); err != nil {
			return nil, fmt.Errorf("scan waypoint: %w", err)
		}
		wp.Driver = driver.String
		waypoints = append(waypoints, wp)
	}
	return waypoints, rows.Err()
}
