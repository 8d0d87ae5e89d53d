package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	onebusaway "github.com/OneBusAway/go-sdk"
	"github.com/OneBusAway/go-sdk/option"

	"dv8.transit.org/internal/config"
	"dv8.transit.org/internal/models"
)

// OneBusAwaySource polls the vehicles-for-agency endpoint of a OneBusAway server.
type OneBusAwaySource struct {
	baseURL  string
	agencyID string
	client   *onebusaway.Client
	logger   *slog.Logger
}

// obaVehicle is the subset of a vehicle status the poller records.
type obaVehicle struct {
	VehicleID        string
	TripID           string
	Lat, Lon         float64
	DeviationSeconds int64
	OccupancyCount   int64
}

type obaRoute struct {
	ID        string
	ShortName string
	LongName  string
}

func NewOneBusAwaySource(baseURL, apiKey, agencyID string, httpClient *http.Client, logger *slog.Logger) *OneBusAwaySource {
	client := onebusaway.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)
	return &OneBusAwaySource{baseURL: baseURL, agencyID: agencyID, client: client, logger: logger}
}

func (s *OneBusAwaySource) Name() string { return config.SourceOneBusAway }

func (s *OneBusAwaySource) Fetch(ctx context.Context) ([]models.RouteSnapshot, error) {
	response, err := s.client.VehiclesForAgency.List(ctx, s.agencyID, onebusaway.VehiclesForAgencyListParams{})
	if err != nil {
		fe := &FetchError{Source: s.Name(), URL: s.baseURL, Err: err}
		var apiErr *onebusaway.Error
		if errors.As(err, &apiErr) {
			fe.StatusCode = apiErr.StatusCode
		}
		return nil, fe
	}
	if response == nil {
		return nil, nil
	}

	routes := make(map[string]obaRoute, len(response.Data.References.Routes))
	for _, r := range response.Data.References.Routes {
		routes[r.ID] = obaRoute{ID: r.ID, ShortName: r.ShortName, LongName: r.LongName}
	}
	tripRoutes := make(map[string]string, len(response.Data.References.Trips))
	for _, t := range response.Data.References.Trips {
		tripRoutes[t.ID] = t.RouteID
	}

	vehicles := make([]obaVehicle, 0, len(response.Data.List))
	for _, v := range response.Data.List {
		vehicles = append(vehicles, obaVehicle{
			VehicleID:        v.VehicleID,
			TripID:           v.TripID,
			Lat:              v.Location.Lat,
			Lon:              v.Location.Lon,
			DeviationSeconds: v.TripStatus.ScheduleDeviation,
			OccupancyCount:   v.OccupancyCount,
		})
	}

	snapshots := snapshotsFromOBA(vehicles, tripRoutes, routes)
	s.logger.Debug("fetched OneBusAway vehicles", "agency_id", s.agencyID, "routes", len(snapshots), "vehicles", len(vehicles))
	return snapshots, nil
}

// snapshotsFromOBA groups vehicles by the route of their active trip, in
// order of first sighting. Idle vehicles have no trip and are dropped.
func snapshotsFromOBA(vehicles []obaVehicle, tripRoutes map[string]string, routes map[string]obaRoute) []models.RouteSnapshot {
	index := map[string]int{}
	var snapshots []models.RouteSnapshot
	for _, v := range vehicles {
		routeID := tripRoutes[v.TripID]
		if v.TripID == "" || routeID == "" {
			continue
		}

		i, ok := index[routeID]
		if !ok {
			i = len(snapshots)
			index[routeID] = i
			snapshots = append(snapshots, models.RouteSnapshot{
				Code: models.StringField(routeID),
				Name: routeName(routes[routeID], routeID),
			})
		}

		minutes := int(v.DeviationSeconds / 60)
		reading := models.VehicleReading{
			TripCode:  models.StringField(v.TripID),
			RunCode:   optionalString(v.VehicleID),
			Name:      v.VehicleID,
			Deviation: models.IntField(int64(minutes)),
			OpStatus:  opStatusFor(minutes, true),
			OnBoard:   models.IntField(v.OccupancyCount),
		}
		if v.Lat != 0 || v.Lon != 0 {
			reading.Latitude = models.NumberField(v.Lat)
			reading.Longitude = models.NumberField(v.Lon)
		}
		snapshots[i].Vehicles = append(snapshots[i].Vehicles, reading)
	}
	return snapshots
}

func routeName(r obaRoute, fallback string) string {
	switch {
	case r.LongName != "":
		return r.LongName
	case r.ShortName != "":
		return r.ShortName
	default:
		return fallback
	}
}
