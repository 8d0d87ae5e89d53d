package timeline

import "dv8.transit.org/internal/models"

// ValueFunc maps a waypoint to the y-value that is plotted for it.
type ValueFunc func(models.WayPoint) float64

// Default display bounds of ClampedDeviation, in minutes.
const (
	DefaultClampLow  = -10
	DefaultClampHigh = 20
)

// RawDeviation plots the schedule deviation as recorded.
func RawDeviation(wp models.WayPoint) float64 {
	return float64(wp.Deviation)
}

// ClampedDeviation bounds the deviation to [lo, hi] so that a few extreme
// samples do not flatten the rest of the chart. lo >= hi selects the
// default bounds.
func ClampedDeviation(lo, hi float64) ValueFunc {
	if lo >= hi {
		lo, hi = DefaultClampLow, DefaultClampHigh
	}
	return func(wp models.WayPoint) float64 {
		return min(max(float64(wp.Deviation), lo), hi)
	}
}
