package models

import "time"

// Route is a transit line as identified by the feed's route code.
// The name is captured on first sighting and never updated afterwards.
type Route struct {
	ID   int64
	Code string
	Name string
}

// Trip is one scheduled vehicle run on a route, identified by
// (route, trip code, run code). A trip row is reused across service days;
// per-day grouping happens only on the read path.
type Trip struct {
	ID      int64
	RouteID int64
	Code    string
	RunCode string
	Name    string
}

// WayPoint is a single telemetry sample recorded against a trip.
type WayPoint struct {
	ID        int64
	TripID    int64
	Timestamp time.Time
	Latitude  float64
	Longitude float64
	Deviation int
	OpStatus  string
	OnBoard   int
	Direction string
	Driver    string
}

// RouteSnapshot is one route entry of a telemetry poll together with the
// vehicles currently active on it.
type RouteSnapshot struct {
	Code     Field
	Name     string
	Vehicles []VehicleReading
}

// VehicleReading is the raw, not yet validated record for one vehicle.
// Numeric fields stay as Field values so that coercion failures surface
// where the reading is recorded instead of while decoding the whole feed.
type VehicleReading struct {
	TripCode  Field
	RunCode   Field
	Name      string
	Latitude  Field
	Longitude Field
	Deviation Field
	OpStatus  string
	OnBoard   Field
	Direction string
	Driver    string
}
