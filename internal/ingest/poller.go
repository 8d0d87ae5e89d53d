package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"dv8.transit.org/internal/config"
	"dv8.transit.org/internal/metrics"
	"dv8.transit.org/internal/publisher"
	"dv8.transit.org/internal/report"
	"dv8.transit.org/internal/telemetry"
	"dv8.transit.org/internal/utils"
)

// UnitOfWork is an EntityStore whose staged writes become durable together on Commit.
type UnitOfWork interface {
	EntityStore
	Commit() error
	Rollback() error
}

// BeginFunc opens a unit of work for one poll cycle.
type BeginFunc func(ctx context.Context) (UnitOfWork, error)

// CycleResult describes one poll cycle.
type CycleResult struct {
	CycleID       string
	CapturedAt    time.Time
	Routes        int
	RoutesCreated int
	TripsCreated  int
	Waypoints     int
	Excluded      int
	Malformed     map[string]int
	Duration      time.Duration
}

// MalformedCount returns the number of readings skipped in the cycle.
func (c CycleResult) MalformedCount() int {
	n := 0
	for _, v := range c.Malformed {
		n += v
	}
	return n
}

// Poller drives the fetch, resolve, commit cycle on a fixed interval.
//
// Publisher and Tracker are optional and only see committed waypoints.
type Poller struct {
	Source       telemetry.Source
	Begin        BeginFunc
	Resolver     *Resolver
	Publisher    publisher.Publisher
	Tracker      *metrics.TripTracker
	Logger       *slog.Logger
	Interval     time.Duration
	FetchTimeout time.Duration
	Now          func() time.Time

	lastSuccess atomic.Int64
}

func NewPoller(source telemetry.Source, begin BeginFunc, resolver *Resolver, logger *slog.Logger) *Poller {
	return &Poller{
		Source:       source,
		Begin:        begin,
		Resolver:     resolver,
		Logger:       logger,
		Interval:     config.DefaultPollInterval,
		FetchTimeout: config.DefaultFetchTimeout,
		Now:          time.Now,
	}
}

// LastSuccess returns the capture time of the last committed cycle, or the
// zero time if none has committed yet.
func (p *Poller) LastSuccess() time.Time {
	n := p.lastSuccess.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Run polls immediately and then on every tick until ctx is cancelled.
// Failed cycles are logged and reported; they never stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	p.Logger.Info("poller started", "source", p.Source.Name(), "interval", p.Interval)
	p.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			p.Logger.Info("poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.runCycle(ctx)
		}
	}
}

func (p *Poller) runCycle(ctx context.Context) {
	result, err := p.PollOnce(ctx)
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		return
	}
	p.Logger.Error("poll cycle failed", "cycle_id", result.CycleID, "error", err)

	level := sentry.LevelError
	if errors.Is(err, telemetry.ErrFetch) {
		level = sentry.LevelWarning
	}
	report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
		Tags: utils.MakeMap("source", p.Source.Name()),
		ExtraContext: map[string]interface{}{
			"cycle_id": result.CycleID,
		},
		Level: level,
	})
}

// PollOnce runs exactly one cycle: fetch, begin, resolve every entry, commit.
//
// A fetch failure returns an error matching telemetry.ErrFetch and touches
// no store state. A store failure rolls the cycle back and returns an error
// matching ErrStore. Malformed readings are counted in the result only.
func (p *Poller) PollOnce(ctx context.Context) (CycleResult, error) {
	start := time.Now()
	result := CycleResult{CycleID: uuid.NewString(), Malformed: map[string]int{}}
	logger := p.Logger.With("cycle_id", result.CycleID)

	fetchCtx, cancel := context.WithTimeout(ctx, p.FetchTimeout)
	snapshots, err := p.Source.Fetch(fetchCtx)
	cancel()
	if err != nil {
		if !errors.Is(err, telemetry.ErrFetch) {
			err = &telemetry.FetchError{Source: p.Source.Name(), Err: err}
		}
		metrics.PollCycles.WithLabelValues(metrics.OutcomeFetchError).Inc()
		return result, err
	}

	result.CapturedAt = p.Now()
	result.Routes = len(snapshots)

	uow, err := p.Begin(ctx)
	if err != nil {
		metrics.PollCycles.WithLabelValues(metrics.OutcomeStoreError).Inc()
		return result, storeErr("begin", err)
	}

	var recorded []RecordedWaypoint
	for _, snap := range snapshots {
		entry, err := p.Resolver.ResolveEntry(ctx, uow, snap, result.CapturedAt)
		if err != nil {
			if rbErr := uow.Rollback(); rbErr != nil {
				logger.Error("rollback failed", "error", rbErr)
			}
			metrics.PollCycles.WithLabelValues(metrics.OutcomeStoreError).Inc()
			return result, storeErr("resolve", err)
		}
		if entry.RouteCreated {
			result.RoutesCreated++
		}
		result.TripsCreated += entry.TripsCreated
		result.Excluded += entry.Excluded
		for field, n := range entry.Malformed {
			result.Malformed[field] += n
		}
		recorded = append(recorded, entry.Waypoints...)
	}

	if err := uow.Commit(); err != nil {
		_ = uow.Rollback()
		metrics.PollCycles.WithLabelValues(metrics.OutcomeStoreError).Inc()
		return result, storeErr("commit", err)
	}

	result.Waypoints = len(recorded)
	result.Duration = time.Since(start)
	p.lastSuccess.Store(result.CapturedAt.UnixNano())
	p.recordMetrics(result)

	logger.Info("poll cycle committed",
		"routes", result.Routes,
		"routes_created", result.RoutesCreated,
		"trips_created", result.TripsCreated,
		"waypoints", result.Waypoints,
		"malformed", result.MalformedCount(),
		"excluded", result.Excluded,
		"duration", result.Duration,
	)

	p.afterCommit(ctx, logger, result.CycleID, recorded)
	return result, nil
}

func (p *Poller) recordMetrics(result CycleResult) {
	metrics.PollCycles.WithLabelValues(metrics.OutcomeSuccess).Inc()
	metrics.PollCycleDuration.Observe(result.Duration.Seconds())
	metrics.LastSuccessfulCycle.Set(float64(result.CapturedAt.Unix()))
	metrics.RoutesCreated.Add(float64(result.RoutesCreated))
	metrics.TripsCreated.Add(float64(result.TripsCreated))
	metrics.WaypointsRecorded.Add(float64(result.Waypoints))
	metrics.ExcludedVehicles.Add(float64(result.Excluded))
	for field, n := range result.Malformed {
		metrics.MalformedReadings.WithLabelValues(field).Add(float64(n))
	}
}

// afterCommit feeds committed waypoints to the optional tracker and
// publisher. Failures here never affect the stored cycle.
func (p *Poller) afterCommit(ctx context.Context, logger *slog.Logger, cycleID string, recorded []RecordedWaypoint) {
	if p.Tracker != nil {
		for _, rw := range recorded {
			if p.Tracker.Observe(rw.Route.Code, rw.WayPoint) {
				logger.Warn("implausible jump between waypoints", "route", rw.Route.Code, "trip", rw.Trip.Code)
			}
		}
	}

	if p.Publisher == nil {
		return
	}
	failed := 0
	var lastErr error
	for _, rw := range recorded {
		if err := p.Publisher.Publish(ctx, publisher.NewWaypointEvent(cycleID, rw.Route, rw.Trip, rw.WayPoint)); err != nil {
			failed++
			lastErr = err
		}
	}
	if failed > 0 {
		logger.Warn("failed to publish waypoints", "failed", failed, "total", len(recorded), "error", lastErr)
	}
}
