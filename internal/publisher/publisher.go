package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dv8.transit.org/internal/config"
	"dv8.transit.org/internal/geo"
	"dv8.transit.org/internal/metrics"
	"dv8.transit.org/internal/models"
)

// Publisher forwards committed waypoints to a downstream system.
type Publisher interface {
	Publish(ctx context.Context, ev WaypointEvent) error
	Close() error
}

// WaypointEvent is the wire form of one committed waypoint.
type WaypointEvent struct {
	CycleID    string    `json:"cycle_id"`
	RouteCode  string    `json:"route"`
	TripCode   string    `json:"trip"`
	RunCode    string    `json:"run"`
	TripID     int64     `json:"trip_id"`
	WaypointID int64     `json:"waypoint_id"`
	Timestamp  time.Time `json:"timestamp"`
	Latitude   float64   `json:"lat"`
	Longitude  float64   `json:"lon"`
	Cell       string    `json:"cell"`
	Deviation  int       `json:"deviation"`
	OpStatus   string    `json:"op_status"`
	OnBoard    int       `json:"on_board"`
	Direction  string    `json:"direction"`
	Driver     string    `json:"driver,omitempty"`
}

func NewWaypointEvent(cycleID string, route models.Route, trip models.Trip, wp models.WayPoint) WaypointEvent {
	return WaypointEvent{
		CycleID:    cycleID,
		RouteCode:  route.Code,
		TripCode:   trip.Code,
		RunCode:    trip.RunCode,
		TripID:     trip.ID,
		WaypointID: wp.ID,
		Timestamp:  wp.Timestamp,
		Latitude:   wp.Latitude,
		Longitude:  wp.Longitude,
		Cell:       geo.CellToken(wp.Latitude, wp.Longitude),
		Deviation:  wp.Deviation,
		OpStatus:   wp.OpStatus,
		OnBoard:    wp.OnBoard,
		Direction:  wp.Direction,
		Driver:     wp.Driver,
	}
}

type namedPublisher interface {
	Publisher
	sinkName() string
}

// Multi fans every event out to all of its sinks.
type Multi struct {
	sinks []namedPublisher
}

// Len returns the number of configured sinks.
func (m *Multi) Len() int { return len(m.sinks) }

// Publish delivers ev to every sink, even after one fails, and returns the
// joined errors.
func (m *Multi) Publish(ctx context.Context, ev WaypointEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Publish(ctx, ev); err != nil {
			metrics.PublishErrors.WithLabelValues(s.sinkName()).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", s.sinkName(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.sinkName(), err))
		}
	}
	return errors.Join(errs...)
}

// NewFromConfig connects every sink with a configured URL. Sinks already
// connected are closed again if a later one fails.
func NewFromConfig(cfg config.PublishConfig, logger *slog.Logger) (*Multi, error) {
	m := &Multi{}
	if cfg.NATSURL != "" {
		p, err := NewNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("connect nats: %w", err), m.Close())
		}
		m.sinks = append(m.sinks, p)
	}
	if cfg.RedisURL != "" {
		p, err := NewRedisPublisher(cfg.RedisURL, logger)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("connect redis: %w", err), m.Close())
		}
		m.sinks = append(m.sinks, p)
	}
	if cfg.MQTTURL != "" {
		p, err := NewMQTTPublisher(cfg.MQTTURL, logger)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("connect mqtt: %w", err), m.Close())
		}
		m.sinks = append(m.sinks, p)
	}
	return m, nil
}
