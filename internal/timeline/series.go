package timeline

import (
	"fmt"
	"sort"
	"time"
)

// SeriesKey identifies one trip on one service day. Trips are stored once
// and reused across days, so the day belongs to the key and not to the trip.
type SeriesKey struct {
	TripCode string
	RunCode  string
	TripName string
	Year     int
	Month    time.Month
	Day      int
}

func (k SeriesKey) String() string {
	return fmt.Sprintf("%s_%s_%s_%04d%02d%02d", k.TripCode, k.RunCode, k.TripName, k.Year, int(k.Month), k.Day)
}

// Sample is one plotted point of a series. Lat and Lon keep the vehicle
// position for route summaries.
type Sample struct {
	X   time.Time
	Y   float64
	Lat float64
	Lon float64
}

// Series is the ordered samples of one trip-day.
type Series struct {
	Key     SeriesKey
	Color   string
	Samples []Sample
}

// Span returns the earliest and latest sample times.
func (s *Series) Span() Span {
	if len(s.Samples) == 0 {
		return Span{}
	}
	span := Span{Start: s.Samples[0].X, End: s.Samples[0].X}
	for _, p := range s.Samples[1:] {
		if p.X.Before(span.Start) {
			span.Start = p.X
		}
		if p.X.After(span.End) {
			span.End = p.X
		}
	}
	return span
}

// YRange returns the smallest and largest y-value.
func (s *Series) YRange() (lo, hi float64) {
	for i, p := range s.Samples {
		if i == 0 || p.Y < lo {
			lo = p.Y
		}
		if i == 0 || p.Y > hi {
			hi = p.Y
		}
	}
	return lo, hi
}

// SeriesSet keeps series in the order their keys were first seen.
type SeriesSet struct {
	order []SeriesKey
	byKey map[SeriesKey]*Series
}

func NewSeriesSet() *SeriesSet {
	return &SeriesSet{byKey: make(map[SeriesKey]*Series)}
}

func (ss *SeriesSet) Len() int { return len(ss.order) }

func (ss *SeriesSet) Get(key SeriesKey) (*Series, bool) {
	s, ok := ss.byKey[key]
	return s, ok
}

// add appends a sample, creating the series with color() on first sight.
func (ss *SeriesSet) add(key SeriesKey, sample Sample, color func() string) {
	s, ok := ss.byKey[key]
	if !ok {
		s = &Series{Key: key, Color: color()}
		ss.byKey[key] = s
		ss.order = append(ss.order, key)
	}
	s.Samples = append(s.Samples, sample)
}

// Ordered returns the series in first-seen order.
func (ss *SeriesSet) Ordered() []*Series {
	out := make([]*Series, 0, len(ss.order))
	for _, k := range ss.order {
		out = append(out, ss.byKey[k])
	}
	return out
}

// SortedByStart returns the series ordered by their earliest sample. Ties
// keep first-seen order.
func (ss *SeriesSet) SortedByStart() []*Series {
	out := ss.Ordered()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Span().Start.Before(out[j].Span().Start)
	})
	return out
}
