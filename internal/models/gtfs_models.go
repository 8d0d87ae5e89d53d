package models

import (
	remoteGtfs "github.com/jamespfennell/gtfs"
)

// RealtimeData is the part of a parsed GTFS-RT feed the poller uses:
// vehicle positions and the trip updates that carry schedule delays.
//
// The parsed feed holds large protobuf-derived graphs; copying the two
// slices out lets the rest of the message be collected early.
type RealtimeData struct {
	Vehicles []remoteGtfs.Vehicle
	Trips    []remoteGtfs.Trip
}

func NewRealtimeData(feed *remoteGtfs.Realtime) *RealtimeData {
	return &RealtimeData{
		Vehicles: append([]remoteGtfs.Vehicle(nil), feed.Vehicles...),
		Trips:    append([]remoteGtfs.Trip(nil), feed.Trips...),
	}
}
