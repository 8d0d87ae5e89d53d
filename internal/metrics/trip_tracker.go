package metrics

import (
	"context"
	"sync"
	"time"

	"dv8.transit.org/internal/geo"
	"dv8.transit.org/internal/models"
)

// DefaultMaxPlausibleSpeed is 40 m/s, about 144 km/h, well above any bus.
const DefaultMaxPlausibleSpeed = 40.0

// LastSeen stores timestamp & coordinates for speed computation
type LastSeen struct {
	Time time.Time
	Lat  float64
	Lon  float64
}

// TripTracker stores the most recent committed position of every trip,
// grouped by route code.
//
// Consecutive waypoints of a trip whose implied speed exceeds MaxSpeed are
// counted in ImpliedSpeedAnomalies. Those are almost always GPS glitches or
// a run code reused by a different vehicle.
type TripTracker struct {
	Mu       sync.RWMutex
	Store    map[string]map[int64]LastSeen
	MaxSpeed float64
}

// NewTripTracker creates a tracker flagging speeds above maxSpeed m/s.
// A non-positive maxSpeed selects DefaultMaxPlausibleSpeed.
func NewTripTracker(maxSpeed float64) *TripTracker {
	if maxSpeed <= 0 {
		maxSpeed = DefaultMaxPlausibleSpeed
	}
	return &TripTracker{
		Store:    make(map[string]map[int64]LastSeen),
		MaxSpeed: maxSpeed,
	}
}

// Get retrieves the LastSeen data for a trip on a route.
func (tt *TripTracker) Get(routeCode string, tripID int64) (LastSeen, bool) {
	tt.Mu.RLock()
	defer tt.Mu.RUnlock()

	if trips, ok := tt.Store[routeCode]; ok {
		lastSeen, ok := trips[tripID]
		return lastSeen, ok
	}
	return LastSeen{}, false
}

// Observe records wp as the latest position of its trip and reports whether
// the move from the previous position was implausibly fast.
func (tt *TripTracker) Observe(routeCode string, wp models.WayPoint) bool {
	tt.Mu.Lock()
	defer tt.Mu.Unlock()

	trips, ok := tt.Store[routeCode]
	if !ok {
		trips = make(map[int64]LastSeen)
		tt.Store[routeCode] = trips
	}

	anomaly := false
	if prev, ok := trips[wp.TripID]; ok {
		timeDelta := wp.Timestamp.Sub(prev.Time).Seconds()
		if timeDelta > 0 {
			distance := geo.HaversineDistance(prev.Lat, prev.Lon, wp.Latitude, wp.Longitude)
			if distance/timeDelta > tt.MaxSpeed {
				anomaly = true
				ImpliedSpeedAnomalies.WithLabelValues(routeCode).Inc()
			}
		}
	}

	trips[wp.TripID] = LastSeen{Time: wp.Timestamp, Lat: wp.Latitude, Lon: wp.Longitude}
	TrackedTrips.Set(float64(tt.countLocked()))
	return anomaly
}

// Count returns the number of tracked trips across all routes.
func (tt *TripTracker) Count() int {
	tt.Mu.RLock()
	defer tt.Mu.RUnlock()
	return tt.countLocked()
}

func (tt *TripTracker) countLocked() int {
	n := 0
	for _, trips := range tt.Store {
		n += len(trips)
	}
	return n
}

// ClearRoutine periodically drops trips not seen within threshold, until ctx is done.
func (tt *TripTracker) ClearRoutine(ctx context.Context, timeInterval, threshold time.Duration) {
	ticker := time.NewTicker(timeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tt.clear(time.Now(), threshold)
		case <-ctx.Done():
			return
		}
	}
}

func (tt *TripTracker) clear(now time.Time, threshold time.Duration) {
	tt.Mu.Lock()
	defer tt.Mu.Unlock()

	for routeCode, trips := range tt.Store {
		for tripID, lastSeen := range trips {
			if now.Sub(lastSeen.Time) > threshold {
				delete(trips, tripID)
			}
		}
		if len(trips) == 0 {
			delete(tt.Store, routeCode)
		}
	}
	TrackedTrips.Set(float64(tt.countLocked()))
}
