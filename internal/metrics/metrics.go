package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll cycle outcomes used as the outcome label of PollCycles.
const (
	OutcomeSuccess    = "success"
	OutcomeFetchError = "fetch_error"
	OutcomeStoreError = "store_error"
)

var (
	PollCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dv8_poll_cycles_total",
		Help: "Number of poll cycles by outcome (success, fetch_error, store_error)",
	}, []string{"outcome"})

	PollCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dv8_poll_cycle_duration_seconds",
		Help:    "Wall time of one poll cycle from fetch to commit",
		Buckets: prometheus.DefBuckets,
	})

	LastSuccessfulCycle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dv8_last_successful_cycle_timestamp_seconds",
		Help: "Unix time of the last committed poll cycle",
	})
)

var (
	RoutesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dv8_routes_created_total",
		Help: "Number of routes created on first sighting",
	})

	TripsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dv8_trips_created_total",
		Help: "Number of trips created on first sighting",
	})

	WaypointsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dv8_waypoints_recorded_total",
		Help: "Number of waypoints committed",
	})

	MalformedReadings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dv8_malformed_readings_total",
		Help: "Number of vehicle readings skipped because a required field was missing or not coercible",
	}, []string{"field"})

	ExcludedVehicles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dv8_excluded_vehicles_total",
		Help: "Number of vehicle readings dropped because their route is excluded",
	})
)

var (
	// OutgoingLatency records the duration of requests made to telemetry feeds.
	OutgoingLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dv8_outgoing_request_duration_seconds",
		Help:    "Latency of outgoing HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"url", "method", "status"})

	PublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dv8_publish_errors_total",
		Help: "Number of waypoint events a downstream sink failed to accept",
	}, []string{"sink"})

	ImpliedSpeedAnomalies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dv8_implied_speed_anomalies_total",
		Help: "Number of consecutive waypoints whose implied speed exceeds the plausible maximum",
	}, []string{"route"})

	TrackedTrips = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dv8_tracked_trips",
		Help: "Number of trips currently held by the last-seen tracker",
	})
)
