package geo

import (
	"fmt"

	"github.com/golang/geo/s2"
)

const s2Level = 10 // S2 cell level with 7–10 km spatial resolution

// CellToken returns a stable S2 cell identifier for a lat/lon at the
// package default level. Downstream consumers of published waypoints use it
// to bucket vehicles spatially without a geometry library of their own.
func CellToken(lat, lon float64) string {
	return cellToken(lat, lon, s2Level)
}

func cellToken(lat, lon float64, level int) string {
	ll := s2.LatLngFromDegrees(lat, lon)
	cellID := s2.CellIDFromLatLng(ll).Parent(level)
	return fmt.Sprintf("s2_%d", uint64(cellID))
}
