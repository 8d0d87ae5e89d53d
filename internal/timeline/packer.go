package timeline

import "time"

// Span is the closed time interval covered by a series.
type Span struct {
	Start time.Time
	End   time.Time
}

func (s Span) contains(t time.Time) bool {
	return !t.Before(s.Start) && !t.After(s.End)
}

// Overlaps reports whether two closed intervals share any instant. Either
// endpoint of one falling inside the other counts, which also covers full
// containment in both directions.
func Overlaps(a, b Span) bool {
	return a.contains(b.Start) || a.contains(b.End) || b.contains(a.Start) || b.contains(a.End)
}

// AssignLanes places each series in the first lane holding no overlapping
// interval, opening a new lane when none fits. Series are taken in the order
// given; pass SeriesSet.SortedByStart for the usual layout. It returns the
// 0-based lane of every key and the number of lanes used.
func AssignLanes(series []*Series) (map[SeriesKey]int, int) {
	lanes := make(map[SeriesKey]int, len(series))
	var placed [][]Span

	for _, s := range series {
		span := s.Span()
		lane := -1
		for i, spans := range placed {
			taken := false
			for _, other := range spans {
				if Overlaps(span, other) {
					taken = true
					break
				}
			}
			if !taken {
				lane = i
				break
			}
		}
		if lane < 0 {
			placed = append(placed, nil)
			lane = len(placed) - 1
		}
		placed[lane] = append(placed[lane], span)
		lanes[s.Key] = lane
	}
	return lanes, len(placed)
}
