// Package render draws laid-out deviation timelines as a static SVG document.
package render

import (
	"fmt"
	"html"
	"io"
	"strings"
	"time"
)

// Chart is one report: a stack of route panels sharing the x-axis.
type Chart struct {
	Title     string
	Generated time.Time
	XMin      time.Time
	XMax      time.Time
	Panels    []Panel
}

// Panel is the chart of one route.
type Panel struct {
	Title       string
	Summary     string
	YMin        float64
	YMax        float64
	HeightRatio float64
	Series      []LaidOutSeries
}

// LaidOutSeries is a trip-day series with its lane, color and hatch decided.
type LaidOutSeries struct {
	Label  string
	Color  string
	Hatch  string
	Lane   int
	Points []Point
}

type Point struct {
	X time.Time
	Y float64
}

// Layout defaults.
const (
	DefaultWidth       = 2000
	DefaultPanelHeight = 400
	DefaultBarSize     = 2.0

	marginLeft   = 70
	marginRight  = 30
	headerHeight = 50
	panelGap     = 45
	minPanel     = 40
	fillOpacity  = 0.3
	lineWidth    = 3
	zeroWidth    = 4
)

// colorValues maps palette tokens to SVG colors.
var colorValues = map[string]string{
	"b": "#0000ff",
	"g": "#008000",
	"r": "#ff0000",
	"c": "#00bfbf",
	"m": "#bf00bf",
	"y": "#bfbf00",
	"k": "#000000",
}

// hatchPaths draws each hatch token inside an 8x8 pattern tile.
var hatchPaths = map[string]string{
	"/": "M0,8 L8,0",
	`\`: "M0,0 L8,8",
	"|": "M4,0 L4,8",
	"-": "M0,4 L8,4",
	"+": "M4,0 L4,8 M0,4 L8,4",
}

// SVGRenderer writes a Chart as SVG. Zero fields select the defaults.
type SVGRenderer struct {
	Width       int
	PanelHeight int
	BarSize     float64
}

// Render writes chart to w. Each panel gets a left-aligned title, a thick
// zero line across the whole x-range and, per series, a lane bar below zero,
// the deviation line and a translucent hatched fill between line and zero.
func (r SVGRenderer) Render(w io.Writer, chart Chart) error {
	width := r.Width
	if width <= 0 {
		width = DefaultWidth
	}
	panelHeight := r.PanelHeight
	if panelHeight <= 0 {
		panelHeight = DefaultPanelHeight
	}
	bar := r.BarSize
	if bar <= 0 {
		bar = DefaultBarSize
	}

	heights := make([]int, len(chart.Panels))
	total := headerHeight
	for i, p := range chart.Panels {
		heights[i] = max(minPanel, int(float64(panelHeight)*p.HeightRatio))
		total += heights[i] + panelGap
	}

	x := xScale{min: chart.XMin, max: chart.XMax, left: marginLeft, right: float64(width - marginRight)}

	var svg strings.Builder
	fmt.Fprintf(&svg, `<?xml version="1.0" encoding="UTF-8"?>
<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg">
<rect width="100%%" height="100%%" fill="#ffffff"/>
`, width, total)
	writePatterns(&svg, chart.Panels)

	fmt.Fprintf(&svg, `<text x="%d" y="24" font-family="sans-serif" font-size="18" font-weight="bold">%s</text>`+"\n",
		marginLeft, html.EscapeString(chart.Title))
	if !chart.Generated.IsZero() {
		fmt.Fprintf(&svg, `<text x="%d" y="24" text-anchor="end" font-family="sans-serif" font-size="12" fill="#666666">generated %s</text>`+"\n",
			width-marginRight, chart.Generated.Format(time.RFC3339))
	}

	top := float64(headerHeight)
	for i, p := range chart.Panels {
		top += panelGap
		writePanel(&svg, p, x, top, float64(heights[i]), bar)
		top += float64(heights[i])
	}

	svg.WriteString("</svg>\n")
	_, err := io.WriteString(w, svg.String())
	return err
}

func writePanel(svg *strings.Builder, p Panel, x xScale, top, height, bar float64) {
	lanes := 0
	for _, s := range p.Series {
		lanes = max(lanes, s.Lane+1)
	}
	y := yScale{
		min:    min(p.YMin, 0, -float64(lanes+1)*bar),
		max:    max(p.YMax, 0),
		top:    top,
		bottom: top + height,
	}

	svg.WriteString(`<g class="panel">` + "\n")
	fmt.Fprintf(svg, `<text x="%d" y="%.1f" font-family="sans-serif" font-size="14">%s</text>`+"\n",
		marginLeft, top-22, html.EscapeString(p.Title))
	if p.Summary != "" {
		fmt.Fprintf(svg, `<text x="%d" y="%.1f" font-family="sans-serif" font-size="11" fill="#666666">%s</text>`+"\n",
			marginLeft, top-8, html.EscapeString(p.Summary))
	}
	fmt.Fprintf(svg, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="none" stroke="#cccccc"/>`+"\n",
		x.left, top, x.right-x.left, height)

	for _, s := range p.Series {
		if len(s.Points) == 0 {
			continue
		}
		color := colorValue(s.Color)
		first, last := s.Points[0].X, s.Points[0].X
		for _, pt := range s.Points[1:] {
			if pt.X.Before(first) {
				first = pt.X
			}
			if pt.X.After(last) {
				last = pt.X
			}
		}
		fmt.Fprintf(svg, `<g class="series"><title>%s</title>`+"\n", html.EscapeString(s.Label))

		// Lane bar.
		barTop := y.at(-float64(s.Lane+1) * bar)
		barBottom := y.at(-float64(s.Lane+2) * bar)
		writeFilled(svg, fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f"`,
			x.at(first), barTop, max(x.at(last)-x.at(first), 1), barBottom-barTop), color, s.Hatch)

		// Fill between line and zero.
		var area strings.Builder
		for _, pt := range s.Points {
			fmt.Fprintf(&area, "%.1f,%.1f ", x.at(pt.X), y.at(pt.Y))
		}
		fmt.Fprintf(&area, "%.1f,%.1f %.1f,%.1f", x.at(s.Points[len(s.Points)-1].X), y.at(0), x.at(s.Points[0].X), y.at(0))
		writeFilled(svg, fmt.Sprintf(`<polygon points="%s"`, area.String()), color, s.Hatch)

		var line strings.Builder
		for i, pt := range s.Points {
			if i > 0 {
				line.WriteByte(' ')
			}
			fmt.Fprintf(&line, "%.1f,%.1f", x.at(pt.X), y.at(pt.Y))
		}
		fmt.Fprintf(svg, `<polyline points="%s" fill="none" stroke="%s" stroke-width="%d" stroke-linejoin="round"/>`+"\n",
			line.String(), color, lineWidth)
		svg.WriteString("</g>\n")
	}

	// Zero line drawn last so it sits on top.
	fmt.Fprintf(svg, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#000000" stroke-width="%d"/>`+"\n",
		x.left, y.at(0), x.right, y.at(0), zeroWidth)
	svg.WriteString("</g>\n")
}

// writeFilled emits shape (an unterminated element) twice: once with the
// translucent color and once with the hatch pattern on top.
func writeFilled(svg *strings.Builder, shape, color, hatch string) {
	fmt.Fprintf(svg, `%s fill="%s" fill-opacity="%.1f"/>`+"\n", shape, color, fillOpacity)
	if id, ok := patternID(hatch); ok {
		fmt.Fprintf(svg, `%s fill="url(#%s)" stroke="none"/>`+"\n", shape, id)
	}
}

func writePatterns(svg *strings.Builder, panels []Panel) {
	seen := map[string]bool{}
	svg.WriteString("<defs>\n")
	for _, p := range panels {
		for _, s := range p.Series {
			id, ok := patternID(s.Hatch)
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			fmt.Fprintf(svg, `<pattern id="%s" width="8" height="8" patternUnits="userSpaceOnUse"><path d="%s" stroke="#000000" stroke-opacity="0.5" stroke-width="1"/></pattern>`+"\n",
				id, hatchPaths[s.Hatch])
		}
	}
	svg.WriteString("</defs>\n")
}

// patternID returns a stable element id for a known hatch token.
func patternID(hatch string) (string, bool) {
	if _, ok := hatchPaths[hatch]; !ok {
		return "", false
	}
	var b strings.Builder
	b.WriteString("hatch")
	for _, c := range hatch {
		fmt.Fprintf(&b, "-%x", c)
	}
	return b.String(), true
}

func colorValue(token string) string {
	if v, ok := colorValues[token]; ok {
		return v
	}
	if token == "" {
		return colorValues["k"]
	}
	return token
}

type xScale struct {
	min, max    time.Time
	left, right float64
}

func (s xScale) at(t time.Time) float64 {
	span := s.max.Sub(s.min)
	if span <= 0 {
		return (s.left + s.right) / 2
	}
	return s.left + (s.right-s.left)*float64(t.Sub(s.min))/float64(span)
}

type yScale struct {
	min, max    float64
	top, bottom float64
}

func (s yScale) at(v float64) float64 {
	if s.max <= s.min {
		return (s.top + s.bottom) / 2
	}
	return s.bottom - (s.bottom-s.top)*(v-s.min)/(s.max-s.min)
}
