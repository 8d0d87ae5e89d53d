package geo

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"
)

// BoundingBox defines the corners of a lat/lon box
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Contains checks whether the given latitude and longitude are within the bounding box
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// ComputeBoundingBox computes the bounding box of the valid points.
func ComputeBoundingBox(points []Point) (BoundingBox, error) {
	minLat, maxLat := math.MaxFloat64, -math.MaxFloat64
	minLon, maxLon := math.MaxFloat64, -math.MaxFloat64

	found := false
	for _, p := range points {
		if !IsValidLatLon(p.Lat, p.Lon) {
			continue
		}
		found = true
		minLat = math.Min(minLat, p.Lat)
		maxLat = math.Max(maxLat, p.Lat)
		minLon = math.Min(minLon, p.Lon)
		maxLon = math.Max(maxLon, p.Lon)
	}
	if !found {
		return BoundingBox{}, fmt.Errorf("no valid latitude/longitude found in %d points", len(points))
	}

	return BoundingBox{MinLat: minLat, MaxLat: maxLat, MinLon: minLon, MaxLon: maxLon}, nil
}

// IsValidLatLon returns true if the given latitude and longitude values
// fall within the valid geographic coordinate bounds.
//
// Latitude must be between -90 and 90 degrees, and longitude must be
// between -180 and 180 degrees.
//
// Note: This function treats the coordinate (0,0) as invalid, even though it
// is a valid location in the Gulf of Guinea. AVL units that lost their fix
// report (0,0), so it is rejected as a placeholder.
func IsValidLatLon(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	if lat == 0 && lon == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// earthRadiusInMeters represents the mean radius of the Earth in meters.
// https://nssdc.gsfc.nasa.gov/planetary/factsheet/earthfact.html
const earthRadiusInMeters = 6371000

// HaversineDistance returns the great-circle distance in meters between two points.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * earthRadiusInMeters
}

// PathLength sums the distance between consecutive valid points.
func PathLength(points []Point) float64 {
	var total float64
	var prev *Point
	for i := range points {
		p := points[i]
		if !IsValidLatLon(p.Lat, p.Lon) {
			continue
		}
		if prev != nil {
			total += HaversineDistance(prev.Lat, prev.Lon, p.Lat, p.Lon)
		}
		prev = &p
	}
	return total
}
