package timeline

import (
	"context"
	"time"

	"dv8.transit.org/internal/models"
)

// memReader serves trips and waypoints from maps, in the order given.
type memReader struct {
	trips     map[int64][]models.Trip
	waypoints map[int64][]models.WayPoint
	err       error
}

func (m *memReader) TripsForRoute(_ context.Context, routeID int64) ([]models.Trip, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.trips[routeID], nil
}

func (m *memReader) WaypointsForTrip(_ context.Context, tripID int64) ([]models.WayPoint, error) {
	return m.waypoints[tripID], nil
}

var base = time.Date(2024, time.March, 5, 6, 0, 0, 0, time.UTC)

// seriesAt builds a series whose samples sit at the given minute offsets from base.
func seriesAt(name string, minutes ...int) *Series {
	s := &Series{Key: SeriesKey{TripCode: name}}
	for _, m := range minutes {
		s.Samples = append(s.Samples, Sample{X: base.Add(time.Duration(m) * time.Minute)})
	}
	return s
}

func wpAt(id int64, ts time.Time, deviation int) models.WayPoint {
	return models.WayPoint{ID: id, Timestamp: ts, Deviation: deviation, Latitude: 33.5, Longitude: -86.8}
}
