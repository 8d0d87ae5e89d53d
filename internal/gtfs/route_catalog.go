package gtfs

import (
	"strings"
	"sync"

	remoteGtfs "github.com/jamespfennell/gtfs"

	"dv8.transit.org/internal/geo"
)

// RouteCatalog maps GTFS route IDs to display names taken from a static
// bundle. GTFS-Realtime feeds carry route IDs only. It is safe for
// concurrent use and starts empty.
type RouteCatalog struct {
	mu     sync.RWMutex
	names  map[string]string
	bounds *geo.BoundingBox
}

func NewRouteCatalog() *RouteCatalog {
	return &RouteCatalog{}
}

// Set replaces the catalog contents with the routes and stop area of bundle.
func (c *RouteCatalog) Set(routes []remoteGtfs.Route, stops []remoteGtfs.Stop) {
	names := make(map[string]string, len(routes))
	for _, r := range routes {
		if name := displayName(r); name != "" {
			names[r.Id] = name
		}
	}

	var bounds *geo.BoundingBox
	points := make([]geo.Point, 0, len(stops))
	for _, stop := range stops {
		if stop.Latitude != nil && stop.Longitude != nil {
			points = append(points, geo.Point{Lat: *stop.Latitude, Lon: *stop.Longitude})
		}
	}
	if bb, err := geo.ComputeBoundingBox(points); err == nil {
		bounds = &bb
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = names
	c.bounds = bounds
}

// RouteName returns the display name of a route ID.
func (c *RouteCatalog) RouteName(routeID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[routeID]
	return name, ok
}

// Len returns the number of named routes.
func (c *RouteCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

// Bounds returns the bounding box of the bundle's stops, if it had any.
func (c *RouteCatalog) Bounds() (geo.BoundingBox, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.bounds == nil {
		return geo.BoundingBox{}, false
	}
	return *c.bounds, true
}

// displayName joins the short and long names, e.g. "17 Ensley".
func displayName(r remoteGtfs.Route) string {
	short := strings.TrimSpace(r.ShortName)
	long := strings.TrimSpace(r.LongName)
	switch {
	case short != "" && long != "":
		return short + " " + long
	case short != "":
		return short
	default:
		return long
	}
}
