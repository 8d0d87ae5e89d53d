package ingest

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"dv8.transit.org/internal/config"
	"dv8.transit.org/internal/geo"
	"dv8.transit.org/internal/models"
	"dv8.transit.org/internal/store"
)

// EntityStore is the write side of one unit of work. Lookups must observe
// rows inserted earlier through the same EntityStore. A lookup miss is
// reported as store.ErrNotFound.
type EntityStore interface {
	FindRouteByCode(ctx context.Context, code string) (*models.Route, error)
	InsertRoute(ctx context.Context, r *models.Route) error
	FindTripByKeys(ctx context.Context, routeID int64, code, runCode string) (*models.Trip, error)
	InsertTrip(ctx context.Context, t *models.Trip) error
	AppendWaypoint(ctx context.Context, wp *models.WayPoint) error
}

// Reading field names, as reported in MalformedReadingError and metrics.
const (
	FieldRouteCode = "route_code"
	FieldTripCode  = "trip_code"
	FieldRunCode   = "run_code"
	FieldLatitude  = "latitude"
	FieldLongitude = "longitude"
	FieldPosition  = "position"
	FieldDeviation = "deviation"
	FieldOnBoard   = "on_board"
)

// Resolver turns feed snapshots into routes, trips and waypoints. It holds
// no entity cache: every resolution is a point lookup against the store of
// the current unit of work.
type Resolver struct {
	excluded atomic.Pointer[map[string]struct{}]
	logger   *slog.Logger
}

// RecordedWaypoint is a waypoint staged during resolution together with its parents.
type RecordedWaypoint struct {
	Route    models.Route
	Trip     models.Trip
	WayPoint models.WayPoint
}

// EntryResult summarises one applied route entry.
type EntryResult struct {
	RouteCreated bool
	TripsCreated int
	Excluded     int
	Malformed    map[string]int
	Waypoints    []RecordedWaypoint
}

// MalformedCount returns the number of readings skipped as malformed.
func (r EntryResult) MalformedCount() int {
	n := 0
	for _, c := range r.Malformed {
		n += c
	}
	return n
}

// NewResolver builds a Resolver that ignores the given route codes. A nil
// list selects config.DefaultExcludedRoutes.
func NewResolver(excluded []string, logger *slog.Logger) *Resolver {
	if excluded == nil {
		excluded = config.DefaultExcludedRoutes
	}
	r := &Resolver{logger: logger}
	r.SetExcluded(excluded)
	return r
}

// SetExcluded replaces the excluded route codes. Safe to call while a cycle runs;
// the new set applies from the next lookup.
func (r *Resolver) SetExcluded(codes []string) {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[normalizeCode(c)] = struct{}{}
	}
	r.excluded.Store(&set)
}

// IsExcluded reports whether a route code is ignored. Codes are compared in
// canonical form, so 80, "80" and "80.0" are the same route.
func (r *Resolver) IsExcluded(code string) bool {
	set := r.excluded.Load()
	if set == nil {
		return false
	}
	_, ok := (*set)[normalizeCode(code)]
	return ok
}

// ResolveRoute returns the route with the given code, creating it on first
// sighting. Excluded codes resolve to nil without touching the store.
func (r *Resolver) ResolveRoute(ctx context.Context, es EntityStore, code, name string) (*models.Route, error) {
	route, _, err := r.resolveRoute(ctx, es, code, name)
	return route, err
}

func (r *Resolver) resolveRoute(ctx context.Context, es EntityStore, code, name string) (*models.Route, bool, error) {
	if r.IsExcluded(code) {
		return nil, false, nil
	}

	route, err := es.FindRouteByCode(ctx, code)
	if err == nil {
		return route, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, storeErr("find route", err)
	}

	route = &models.Route{Code: code, Name: name}
	if err := es.InsertRoute(ctx, route); err != nil {
		return nil, false, storeErr("insert route", err)
	}
	r.logger.Info("created route", "route", code, "name", name)
	return route, true, nil
}

// ResolveTrip returns the trip keyed by (route, tripCode, runCode), creating
// it on first sighting.
func (r *Resolver) ResolveTrip(ctx context.Context, es EntityStore, route *models.Route, tripCode, runCode, name string) (*models.Trip, error) {
	trip, _, err := r.resolveTrip(ctx, es, route, tripCode, runCode, name)
	return trip, err
}

func (r *Resolver) resolveTrip(ctx context.Context, es EntityStore, route *models.Route, tripCode, runCode, name string) (*models.Trip, bool, error) {
	trip, err := es.FindTripByKeys(ctx, route.ID, tripCode, runCode)
	if err == nil {
		return trip, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, storeErr("find trip", err)
	}

	trip = &models.Trip{RouteID: route.ID, Code: tripCode, RunCode: runCode, Name: name}
	if err := es.InsertTrip(ctx, trip); err != nil {
		return nil, false, storeErr("insert trip", err)
	}
	r.logger.Debug("created trip", "route", route.Code, "trip", tripCode, "run", runCode)
	return trip, true, nil
}

// RecordWaypoint coerces reading and appends it to trip. A reading with a
// missing or unusable field fails with a *MalformedReadingError and nothing
// is written.
func (r *Resolver) RecordWaypoint(ctx context.Context, es EntityStore, trip *models.Trip, reading models.VehicleReading, capturedAt time.Time) (*models.WayPoint, error) {
	wp, err := parseReading(reading, capturedAt)
	if err != nil {
		return nil, err
	}
	wp.TripID = trip.ID
	if err := es.AppendWaypoint(ctx, &wp); err != nil {
		return nil, storeErr("append waypoint", err)
	}
	return &wp, nil
}

// ResolveEntry applies one route snapshot. Malformed readings are counted
// and skipped; only store failures are returned.
func (r *Resolver) ResolveEntry(ctx context.Context, es EntityStore, snap models.RouteSnapshot, capturedAt time.Time) (EntryResult, error) {
	result := EntryResult{Malformed: map[string]int{}}

	if err := snap.Code.Check(); err != nil {
		result.Malformed[FieldRouteCode] += max(1, len(snap.Vehicles))
		r.logger.Warn("skipping route entry without usable code", "error", err, "vehicles", len(snap.Vehicles))
		return result, nil
	}
	code := strings.TrimSpace(snap.Code.String())

	route, created, err := r.resolveRoute(ctx, es, code, snap.Name)
	if err != nil {
		return result, err
	}
	if route == nil {
		result.Excluded = len(snap.Vehicles)
		return result, nil
	}
	result.RouteCreated = created

	for _, reading := range snap.Vehicles {
		tripCode, runCode, err := readingKeys(reading)
		if err == nil {
			// Validate before resolving the trip so a bad reading never creates one.
			_, err = parseReading(reading, capturedAt)
		}
		if err != nil {
			var me *MalformedReadingError
			if errors.As(err, &me) {
				result.Malformed[me.Field]++
			}
			r.logger.Debug("skipping malformed reading", "route", code, "error", err)
			continue
		}

		trip, tripCreated, err := r.resolveTrip(ctx, es, route, tripCode, runCode, reading.Name)
		if err != nil {
			return result, err
		}
		if tripCreated {
			result.TripsCreated++
		}

		wp, err := r.RecordWaypoint(ctx, es, trip, reading, capturedAt)
		if err != nil {
			return result, err
		}
		result.Waypoints = append(result.Waypoints, RecordedWaypoint{Route: *route, Trip: *trip, WayPoint: *wp})
	}
	return result, nil
}

func readingKeys(reading models.VehicleReading) (string, string, error) {
	if err := reading.TripCode.Check(); err != nil {
		return "", "", &MalformedReadingError{Field: FieldTripCode, Reason: err}
	}
	if err := reading.RunCode.Check(); err != nil {
		return "", "", &MalformedReadingError{Field: FieldRunCode, Reason: err}
	}
	return strings.TrimSpace(reading.TripCode.String()), strings.TrimSpace(reading.RunCode.String()), nil
}

func parseReading(reading models.VehicleReading, capturedAt time.Time) (models.WayPoint, error) {
	lat, err := reading.Latitude.Float()
	if err != nil {
		return models.WayPoint{}, &MalformedReadingError{Field: FieldLatitude, Reason: err}
	}
	lon, err := reading.Longitude.Float()
	if err != nil {
		return models.WayPoint{}, &MalformedReadingError{Field: FieldLongitude, Reason: err}
	}
	if !geo.IsValidLatLon(lat, lon) {
		return models.WayPoint{}, &MalformedReadingError{Field: FieldPosition, Reason: errInvalidPosition}
	}
	deviation, err := reading.Deviation.Int()
	if err != nil {
		return models.WayPoint{}, &MalformedReadingError{Field: FieldDeviation, Reason: err}
	}
	onBoard, err := reading.OnBoard.Int()
	if err != nil {
		return models.WayPoint{}, &MalformedReadingError{Field: FieldOnBoard, Reason: err}
	}

	return models.WayPoint{
		Timestamp: capturedAt,
		Latitude:  lat,
		Longitude: lon,
		Deviation: deviation,
		OpStatus:  reading.OpStatus,
		OnBoard:   onBoard,
		Direction: reading.Direction,
		Driver:    reading.Driver,
	}, nil
}

var errInvalidPosition = errors.New("coordinates out of range or unset")

// normalizeCode maps integral numeric codes to their shortest form.
func normalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if f, err := strconv.ParseFloat(code, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return code
}
