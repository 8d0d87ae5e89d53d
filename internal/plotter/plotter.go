package plotter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"dv8.transit.org/internal/geo"
	"dv8.transit.org/internal/models"
	"dv8.transit.org/internal/render"
	"dv8.transit.org/internal/timeline"
	"dv8.transit.org/internal/utils"
)

// ErrEmptyDataset is returned when no route has a waypoint in the requested window.
var ErrEmptyDataset = errors.New("no data points found in this date range")

// emptyRouteRatio is the height ratio of a panel without points.
const emptyRouteRatio = 0.1

// Snapshot is a consistent read-only view of the entity store.
type Snapshot interface {
	timeline.Reader
	Routes(ctx context.Context) ([]models.Route, error)
	Close() error
}

// OpenFunc opens a Snapshot for one report run.
type OpenFunc func(ctx context.Context) (Snapshot, error)

type Renderer interface {
	Render(w io.Writer, chart render.Chart) error
}

// Plotter builds one deviation report across all routes.
type Plotter struct {
	Open     OpenFunc
	Grouper  timeline.Grouper
	Renderer Renderer
	Logger   *slog.Logger
	Title    string
	// IncludeEmpty keeps routes without points in range as title-only panels.
	IncludeEmpty bool
	Now          func() time.Time
}

// RouteSummary describes one route panel of the report.
type RouteSummary struct {
	Code        string           `json:"code"`
	Name        string           `json:"name"`
	Series      int              `json:"series"`
	Lanes       int              `json:"lanes"`
	Points      int              `json:"points"`
	MinY        float64          `json:"min_y"`
	MaxY        float64          `json:"max_y"`
	Mean        float64          `json:"mean"`
	StdDev      float64          `json:"std_dev"`
	Median      float64          `json:"median"`
	PathMeters  float64          `json:"path_meters"`
	Bounds      *geo.BoundingBox `json:"bounds,omitempty"`
	HeightRatio float64          `json:"height_ratio"`
}

// Report is what a run produced, in addition to the rendered chart.
type Report struct {
	Generated time.Time         `json:"generated"`
	Start     *utils.CustomTime `json:"start,omitempty"`
	End       *utils.CustomTime `json:"end,omitempty"`
	XMin      time.Time         `json:"x_min"`
	XMax      time.Time         `json:"x_max"`
	Points    int               `json:"points"`
	Routes    []RouteSummary    `json:"routes"`
}

type routePlot struct {
	summary RouteSummary
	series  []*timeline.Series
	lanes   map[timeline.SeriesKey]int
}

// Run reads every route from a single snapshot, groups and lays out its
// trip-days, and renders the chart to w. Nothing is written to w when the
// window holds no points.
func (p *Plotter) Run(ctx context.Context, w io.Writer) (*Report, error) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	snap, err := p.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer snap.Close()

	routes, err := snap.Routes(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{Generated: now()}
	if r := p.Grouper.Range; r != nil {
		if r.Start != nil {
			start := utils.CustomTime(*r.Start)
			report.Start = &start
		}
		if r.End != nil {
			end := utils.CustomTime(*r.End)
			report.End = &end
		}
	}

	var plots []routePlot
	for _, route := range routes {
		set, err := p.Grouper.GroupByTripDay(ctx, snap, route, timeline.NewPalette())
		if err != nil {
			return nil, err
		}
		if set.Len() == 0 && !p.IncludeEmpty {
			p.Logger.Debug("skipping route without points in range", "route", route.Code)
			continue
		}

		sorted := set.SortedByStart()
		lanes, laneCount := timeline.AssignLanes(sorted)
		plot := routePlot{
			summary: summarize(route, sorted),
			series:  sorted,
			lanes:   lanes,
		}
		plot.summary.Lanes = laneCount
		plots = append(plots, plot)

		for _, s := range sorted {
			span := s.Span()
			if report.XMin.IsZero() || span.Start.Before(report.XMin) {
				report.XMin = span.Start
			}
			if span.End.After(report.XMax) {
				report.XMax = span.End
			}
		}
		report.Points += plot.summary.Points
	}

	if report.Points == 0 {
		return report, ErrEmptyDataset
	}

	maxSpan := 0.0
	for _, plot := range plots {
		maxSpan = max(maxSpan, plot.summary.MaxY-plot.summary.MinY)
	}

	chart := render.Chart{
		Title:     p.Title,
		Generated: report.Generated,
		XMin:      report.XMin,
		XMax:      report.XMax,
	}
	for i := range plots {
		plot := &plots[i]
		plot.summary.HeightRatio = heightRatio(plot.summary, maxSpan)
		chart.Panels = append(chart.Panels, panelFor(plot))
		report.Routes = append(report.Routes, plot.summary)

		s := plot.summary
		p.Logger.Info("route plotted",
			"route", s.Code,
			"series", s.Series,
			"lanes", s.Lanes,
			"points", s.Points,
			"mean", s.Mean,
			"median", s.Median,
			"path_km", s.PathMeters/1000,
		)
	}

	if err := p.Renderer.Render(w, chart); err != nil {
		return report, fmt.Errorf("render chart: %w", err)
	}
	return report, nil
}

func summarize(route models.Route, series []*timeline.Series) RouteSummary {
	s := RouteSummary{Code: route.Code, Name: route.Name, Series: len(series)}

	var ys []float64
	var positions []geo.Point
	for _, ser := range series {
		path := make([]geo.Point, 0, len(ser.Samples))
		for _, sample := range ser.Samples {
			ys = append(ys, sample.Y)
			path = append(path, geo.Point{Lat: sample.Lat, Lon: sample.Lon})
		}
		s.PathMeters += geo.PathLength(path)
		positions = append(positions, path...)
	}
	s.Points = len(ys)
	if s.Points == 0 {
		return s
	}

	s.Mean, s.StdDev = stat.MeanStdDev(ys, nil)
	if s.Points < 2 {
		s.StdDev = 0
	}
	sort.Float64s(ys)
	s.Median = stat.Quantile(0.5, stat.Empirical, ys, nil)
	s.MinY, s.MaxY = ys[0], ys[len(ys)-1]
	if bb, err := geo.ComputeBoundingBox(positions); err == nil {
		s.Bounds = &bb
	}
	return s
}

// heightRatio sizes a panel by its y-span relative to the widest route.
func heightRatio(s RouteSummary, maxSpan float64) float64 {
	if s.Points == 0 {
		return emptyRouteRatio
	}
	if maxSpan <= 0 {
		return 1
	}
	return (s.MaxY - s.MinY) / maxSpan
}

func panelFor(plot *routePlot) render.Panel {
	s := plot.summary
	panel := render.Panel{
		Title:       fmt.Sprintf("%s %s", s.Code, s.Name),
		YMin:        s.MinY,
		YMax:        s.MaxY,
		HeightRatio: s.HeightRatio,
	}
	if s.Points > 0 {
		panel.Summary = fmt.Sprintf("%d trip-days in %d lanes, mean %.1f, sd %.1f, median %.1f, %.1f km travelled",
			s.Series, s.Lanes, s.Mean, s.StdDev, s.Median, s.PathMeters/1000)
	}

	// Hatches cycle per drawn series, independent of the lane.
	palette := timeline.NewPalette()
	for _, ser := range plot.series {
		points := make([]render.Point, len(ser.Samples))
		for i, sample := range ser.Samples {
			points[i] = render.Point{X: sample.X, Y: sample.Y}
		}
		panel.Series = append(panel.Series, render.LaidOutSeries{
			Label:  ser.Key.String(),
			Color:  ser.Color,
			Hatch:  palette.NextHatch(),
			Lane:   plot.lanes[ser.Key],
			Points: points,
		})
	}
	return panel
}
