package timeline

import (
	"context"
	"fmt"
	"time"

	"dv8.transit.org/internal/models"
)

// Reader is the read side of the entity store used for grouping.
type Reader interface {
	TripsForRoute(ctx context.Context, routeID int64) ([]models.Trip, error)
	WaypointsForTrip(ctx context.Context, tripID int64) ([]models.WayPoint, error)
}

// Grouper splits the waypoints of a route into trip-day series.
type Grouper struct {
	Value ValueFunc
	Range *DateRange
	// Location is where service days begin and end. Nil means time.Local.
	Location *time.Location
}

// GroupByTripDay visits the route's trips and waypoints in id order and
// appends each waypoint in range to the series of its (trip, run, name, day)
// key. A series takes the next palette color the first time it is seen.
// A route without qualifying waypoints returns an empty set.
func (g Grouper) GroupByTripDay(ctx context.Context, reader Reader, route models.Route, palette *Palette) (*SeriesSet, error) {
	value := g.Value
	if value == nil {
		value = RawDeviation
	}
	loc := g.Location
	if loc == nil {
		loc = time.Local
	}

	set := NewSeriesSet()
	trips, err := reader.TripsForRoute(ctx, route.ID)
	if err != nil {
		return nil, fmt.Errorf("trips for route %s: %w", route.Code, err)
	}
	for _, trip := range trips {
		waypoints, err := reader.WaypointsForTrip(ctx, trip.ID)
		if err != nil {
			return nil, fmt.Errorf("waypoints for trip %d: %w", trip.ID, err)
		}
		for _, wp := range waypoints {
			ts := wp.Timestamp.In(loc)
			if !g.Range.Contains(ts) {
				continue
			}
			year, month, day := ts.Date()
			key := SeriesKey{
				TripCode: trip.Code,
				RunCode:  trip.RunCode,
				TripName: trip.Name,
				Year:     year,
				Month:    month,
				Day:      day,
			}
			set.add(key, Sample{X: ts, Y: value(wp), Lat: wp.Latitude, Lon: wp.Longitude}, palette.NextColor)
		}
	}
	return set, nil
}
