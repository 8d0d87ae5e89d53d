package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"dv8.transit.org/internal/config"
	"dv8.transit.org/internal/models"
)

const maxFeedBytes = 32 << 20

// InfoPointSource polls an Avail InfoPoint GetAllRoutes endpoint.
type InfoPointSource struct {
	url        string
	client     *http.Client
	maxRetries int
	logger     *slog.Logger
}

type infoPointRoute struct {
	RouteId  models.Field       `json:"RouteId"`
	LongName models.Field       `json:"LongName"`
	Vehicles []infoPointVehicle `json:"Vehicles"`
}

type infoPointVehicle struct {
	TripId     models.Field `json:"TripId"`
	RunId      models.Field `json:"RunId"`
	Name       models.Field `json:"Name"`
	Latitude   models.Field `json:"Latitude"`
	Longitude  models.Field `json:"Longitude"`
	Deviation  models.Field `json:"Deviation"`
	OpStatus   models.Field `json:"OpStatus"`
	OnBoard    models.Field `json:"OnBoard"`
	Direction  models.Field `json:"Direction"`
	DriverName models.Field `json:"DriverName"`
}

func NewInfoPointSource(url string, client *http.Client, maxRetries int, logger *slog.Logger) *InfoPointSource {
	return &InfoPointSource{url: url, client: client, maxRetries: maxRetries, logger: logger}
}

func (s *InfoPointSource) Name() string { return config.SourceInfoPoint }

// Fetch downloads and decodes one feed snapshot. Field values are kept raw;
// coercion happens per reading during resolution.
func (s *InfoPointSource) Fetch(ctx context.Context) ([]models.RouteSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, &FetchError{Source: s.Name(), URL: s.url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := config.DoWithBackoff(ctx, s.client, req, s.maxRetries)
	if err != nil {
		return nil, &FetchError{Source: s.Name(), URL: s.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Source: s.Name(), URL: s.url, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("status %s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, &FetchError{Source: s.Name(), URL: s.url, Err: fmt.Errorf("read body: %w", err)}
	}

	var routes []infoPointRoute
	if err := json.Unmarshal(body, &routes); err != nil {
		return nil, &FetchError{Source: s.Name(), URL: s.url, Err: fmt.Errorf("decode routes: %w", err)}
	}

	snapshots := make([]models.RouteSnapshot, 0, len(routes))
	vehicles := 0
	for _, r := range routes {
		snap := models.RouteSnapshot{
			Code:     r.RouteId,
			Name:     r.LongName.String(),
			Vehicles: make([]models.VehicleReading, 0, len(r.Vehicles)),
		}
		for _, v := range r.Vehicles {
			snap.Vehicles = append(snap.Vehicles, models.VehicleReading{
				TripCode:  v.TripId,
				RunCode:   v.RunId,
				Name:      v.Name.String(),
				Latitude:  v.Latitude,
				Longitude: v.Longitude,
				Deviation: v.Deviation,
				OpStatus:  v.OpStatus.String(),
				OnBoard:   v.OnBoard,
				Direction: v.Direction.String(),
				Driver:    v.DriverName.String(),
			})
		}
		vehicles += len(r.Vehicles)
		snapshots = append(snapshots, snap)
	}

	s.logger.Debug("fetched infopoint feed", "routes", len(snapshots), "vehicles", vehicles)
	return snapshots, nil
}
