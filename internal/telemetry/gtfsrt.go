package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	remoteGtfs "github.com/jamespfennell/gtfs"

	"dv8.transit.org/internal/config"
	"dv8.transit.org/internal/models"
)

// RouteNamer looks up the display name of a GTFS route ID.
type RouteNamer interface {
	RouteName(routeID string) (string, bool)
}

// GTFSRealtimeSource polls a GTFS-Realtime feed carrying vehicle positions
// and, optionally, trip updates with delays.
//
// Routes, when set, names routes the feed only knows by ID. Unknown IDs keep
// the ID as their name.
type GTFSRealtimeSource struct {
	Routes RouteNamer

	url         string
	headerKey   string
	headerValue string
	client      *http.Client
	maxRetries  int
	logger      *slog.Logger
}

func NewGTFSRealtimeSource(feedURL, headerKey, headerValue string, client *http.Client, maxRetries int, logger *slog.Logger) *GTFSRealtimeSource {
	return &GTFSRealtimeSource{
		url:         feedURL,
		headerKey:   headerKey,
		headerValue: headerValue,
		client:      client,
		maxRetries:  maxRetries,
		logger:      logger,
	}
}

func (s *GTFSRealtimeSource) Name() string { return config.SourceGTFSRealtime }

func (s *GTFSRealtimeSource) Fetch(ctx context.Context) ([]models.RouteSnapshot, error) {
	parsedURL, err := url.Parse(s.url)
	if err != nil {
		return nil, &FetchError{Source: s.Name(), URL: s.url, Err: fmt.Errorf("parse GTFS-RT URL: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsedURL.String(), nil)
	if err != nil {
		return nil, &FetchError{Source: s.Name(), URL: s.url, Err: err}
	}
	if s.headerKey != "" && s.headerValue != "" {
		req.Header.Set(s.headerKey, s.headerValue)
	}

	resp, err := config.DoWithBackoff(ctx, s.client, req, s.maxRetries)
	if err != nil {
		return nil, &FetchError{Source: s.Name(), URL: s.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Source: s.Name(), URL: s.url, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("status %s", resp.Status)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, &FetchError{Source: s.Name(), URL: s.url, Err: fmt.Errorf("read body: %w", err)}
	}

	feed, err := remoteGtfs.ParseRealtime(data, &remoteGtfs.ParseRealtimeOptions{})
	if err != nil {
		return nil, &FetchError{Source: s.Name(), URL: s.url, Err: fmt.Errorf("parse GTFS-RT feed: %w", err)}
	}
	realtimeData := models.NewRealtimeData(feed)
	feed = nil // drop reference, GC can collect earlier

	snapshots := snapshotsFromRealtime(realtimeData)
	if s.Routes != nil {
		nameRoutes(snapshots, s.Routes)
	}
	s.logger.Debug("fetched GTFS-RT feed", "routes", len(snapshots), "vehicles", len(realtimeData.Vehicles))
	return snapshots, nil
}

// snapshotsFromRealtime groups vehicles by route in order of first sighting.
// Vehicles without a trip descriptor cannot be attributed to a route and are
// dropped.
func snapshotsFromRealtime(data *models.RealtimeData) []models.RouteSnapshot {
	delays := make(map[string]time.Duration, len(data.Trips))
	for _, trip := range data.Trips {
		if d, ok := firstDelay(trip.StopTimeUpdates); ok {
			delays[trip.ID.ID] = d
		}
	}

	index := map[string]int{}
	var snapshots []models.RouteSnapshot
	for _, vehicle := range data.Vehicles {
		if vehicle.Trip == nil || vehicle.Trip.ID.RouteID == "" {
			continue
		}
		tripID := vehicle.Trip.ID
		routeID := tripID.RouteID

		i, ok := index[routeID]
		if !ok {
			i = len(snapshots)
			index[routeID] = i
			snapshots = append(snapshots, models.RouteSnapshot{
				Code: models.StringField(routeID),
				Name: routeID,
			})
		}

		delay, known := delays[tripID.ID]
		if !known {
			delay, known = firstDelay(vehicle.Trip.StopTimeUpdates)
		}
		minutes := delayMinutes(delay)

		reading := models.VehicleReading{
			TripCode:  optionalString(tripID.ID),
			Deviation: models.IntField(int64(minutes)),
			OpStatus:  opStatusFor(minutes, known),
			OnBoard:   models.IntField(0),
		}
		if vehicle.ID != nil {
			reading.RunCode = optionalString(vehicle.ID.ID)
			reading.Name = vehicle.ID.Label
		}
		if vehicle.Position != nil {
			if vehicle.Position.Latitude != nil {
				reading.Latitude = models.NumberField(float64(*vehicle.Position.Latitude))
			}
			if vehicle.Position.Longitude != nil {
				reading.Longitude = models.NumberField(float64(*vehicle.Position.Longitude))
			}
			if vehicle.Position.Bearing != nil {
				reading.Direction = compassPoint(float64(*vehicle.Position.Bearing))
			}
		}
		if vehicle.OccupancyPercentage != nil {
			reading.OnBoard = models.IntField(int64(*vehicle.OccupancyPercentage))
		}
		snapshots[i].Vehicles = append(snapshots[i].Vehicles, reading)
	}
	return snapshots
}

func nameRoutes(snapshots []models.RouteSnapshot, names RouteNamer) {
	for i := range snapshots {
		if name, ok := names.RouteName(snapshots[i].Code.String()); ok {
			snapshots[i].Name = name
		}
	}
}

func firstDelay(updates []remoteGtfs.StopTimeUpdate) (time.Duration, bool) {
	for _, u := range updates {
		if u.Arrival != nil && u.Arrival.Delay != nil {
			return *u.Arrival.Delay, true
		}
		if u.Departure != nil && u.Departure.Delay != nil {
			return *u.Departure.Delay, true
		}
	}
	return 0, false
}

// delayMinutes truncates toward zero so a vehicle 59s late still counts as on time.
func delayMinutes(d time.Duration) int {
	return int(d / time.Minute)
}

func optionalString(s string) models.Field {
	if s == "" {
		return models.Field{}
	}
	return models.StringField(s)
}

var compassPoints = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

func compassPoint(bearing float64) string {
	if math.IsNaN(bearing) || math.IsInf(bearing, 0) {
		return ""
	}
	b := math.Mod(bearing, 360)
	if b < 0 {
		b += 360
	}
	return compassPoints[int(math.Round(b/45))%len(compassPoints)]
}
