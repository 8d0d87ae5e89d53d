package telemetry

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vehiclesForAgencyResponse = `{
  "code": 200,
  "currentTime": 1710000000000,
  "text": "OK",
  "version": 2,
  "data": {
    "limitExceeded": false,
    "list": [
      {
        "vehicleId": "1_4410",
        "tripId": "1_9001",
        "lastUpdateTime": 1710000000000,
        "lastLocationUpdateTime": 1710000000000,
        "location": {"lat": 47.61, "lon": -122.33},
        "occupancyCount": 21,
        "status": "SCHEDULED",
        "phase": "in_progress",
        "tripStatus": {"activeTripId": "1_9001", "scheduleDeviation": -95}
      },
      {
        "vehicleId": "1_4411",
        "tripId": "",
        "lastUpdateTime": 1710000000000,
        "lastLocationUpdateTime": 1710000000000,
        "location": {"lat": 47.6, "lon": -122.3},
        "tripStatus": {}
      }
    ],
    "references": {
      "agencies": [],
      "routes": [{"id": "1_100", "agencyId": "1", "shortName": "10", "longName": "Capitol Hill", "type": 3}],
      "situations": [],
      "stopTimes": [],
      "stops": [],
      "trips": [{"id": "1_9001", "routeId": "1_100", "serviceId": "1_WK"}]
    }
  }
}`

func TestOneBusAwayFetch(t *testing.T) {
	var gotPath string
	server := setupFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(vehiclesForAgencyResponse))
	})

	src := NewOneBusAwaySource(server.URL, "test-key", "1", server.Client(), discardLogger())
	snapshots, err := src.Fetch(context.Background())
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(gotPath, "/vehicles-for-agency/1.json"), "path %q", gotPath)

	require.Len(t, snapshots, 1)
	assert.Equal(t, "1_100", snapshots[0].Code.String())
	assert.Equal(t, "Capitol Hill", snapshots[0].Name)
	require.Len(t, snapshots[0].Vehicles, 1)

	v := snapshots[0].Vehicles[0]
	assert.Equal(t, "1_9001", v.TripCode.String())
	assert.Equal(t, "1_4410", v.RunCode.String())
	assert.Equal(t, "EARLY", v.OpStatus)
	dev, err := v.Deviation.Int()
	require.NoError(t, err)
	assert.Equal(t, -1, dev)
	onBoard, err := v.OnBoard.Int()
	require.NoError(t, err)
	assert.Equal(t, 21, onBoard)
}

func TestOneBusAwayFetchServerError(t *testing.T) {
	server := setupFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":403,"text":"permission denied"}`))
	})

	src := NewOneBusAwaySource(server.URL, "bad-key", "1", server.Client(), discardLogger())
	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusForbidden, fe.StatusCode)
}

func TestSnapshotsFromOBA(t *testing.T) {
	vehicles := []obaVehicle{
		{VehicleID: "a", TripID: "t1", Lat: 1, Lon: 2, DeviationSeconds: 0},
		{VehicleID: "b", TripID: "t2", DeviationSeconds: 240},
		{VehicleID: "c", TripID: "t3"},
		{VehicleID: "d", TripID: "t4", Lat: 3, Lon: 4},
	}
	tripRoutes := map[string]string{"t1": "r1", "t2": "r2", "t4": "r1"}
	routes := map[string]obaRoute{"r1": {ID: "r1", ShortName: "1"}}

	snapshots := snapshotsFromOBA(vehicles, tripRoutes, routes)
	require.Len(t, snapshots, 2)
	assert.Equal(t, "1", snapshots[0].Name, "short name used when long name is blank")
	assert.Equal(t, "r2", snapshots[1].Name, "route id used when route is unreferenced")
	assert.Len(t, snapshots[0].Vehicles, 2)

	assert.Equal(t, "ONTIME", snapshots[0].Vehicles[0].OpStatus)
	late := snapshots[1].Vehicles[0]
	assert.Equal(t, "LATE", late.OpStatus)
	assert.False(t, late.Latitude.Present(), "zero position is treated as missing")
}
