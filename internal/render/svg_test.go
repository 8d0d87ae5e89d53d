package render

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, time.March, 5, 6, 0, 0, 0, time.UTC)

func at(m int) time.Time { return t0.Add(time.Duration(m) * time.Minute) }

func sampleChart() Chart {
	return Chart{
		Title:     "Deviation <clamped>",
		Generated: t0,
		XMin:      at(0),
		XMax:      at(60),
		Panels: []Panel{{
			Title:       "44 Montclair & Eastlake",
			Summary:     "mean 2.0 min",
			YMin:        -3,
			YMax:        8,
			HeightRatio: 1,
			Series: []LaidOutSeries{
				{Label: "1623_4101", Color: "b", Hatch: "/", Lane: 0, Points: []Point{{at(0), 1}, {at(10), 8}}},
				{Label: "1631_4102", Color: "g", Hatch: `\`, Lane: 1, Points: []Point{{at(5), -3}, {at(15), 2}}},
			},
		}, {
			Title:       "17 Ensley",
			HeightRatio: 0.1,
		}},
	}
}

func render(t *testing.T, r SVGRenderer, c Chart) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, c))
	return buf.String()
}

func TestRenderProducesWellFormedSVG(t *testing.T) {
	out := render(t, SVGRenderer{}, sampleChart())

	dec := xml.NewDecoder(strings.NewReader(out))
	for {
		_, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
	}

	assert.Contains(t, out, `<svg width="2000"`)
	assert.Contains(t, out, "Deviation &lt;clamped&gt;")
	assert.Contains(t, out, "44 Montclair &amp; Eastlake")
	assert.Contains(t, out, "mean 2.0 min")
	assert.Contains(t, out, `stroke="#0000ff" stroke-width="3"`)
	assert.Contains(t, out, `stroke="#008000" stroke-width="3"`)
	assert.Equal(t, 2, strings.Count(out, `stroke="#000000" stroke-width="4"`), "one zero line per panel")
}

func TestRenderDefinesEachHatchOnce(t *testing.T) {
	c := sampleChart()
	c.Panels[1].Series = []LaidOutSeries{{Color: "r", Hatch: "/", Points: []Point{{at(30), 0}}}}
	out := render(t, SVGRenderer{}, c)

	slash, ok := patternID("/")
	require.True(t, ok)
	assert.Equal(t, 1, strings.Count(out, `<pattern id="`+slash+`"`))
	assert.Contains(t, out, `fill="url(#`+slash+`)"`)

	_, ok = patternID("?")
	assert.False(t, ok)
}

func TestRenderStacksLaneBarsBelowZero(t *testing.T) {
	c := sampleChart()
	c.Panels = c.Panels[:1]
	out := render(t, SVGRenderer{BarSize: 2}, c)

	rects := regexp.MustCompile(`<rect x="[\d.]+" y="([\d.]+)" width="[\d.]+" height="([\d.]+)" fill="#`).FindAllStringSubmatch(out, -1)
	require.Len(t, rects, 2)
	lane0, _ := strconv.ParseFloat(rects[0][1], 64)
	lane1, _ := strconv.ParseFloat(rects[1][1], 64)
	h0, _ := strconv.ParseFloat(rects[0][2], 64)
	assert.Greater(t, lane1, lane0, "higher lanes are drawn further below zero")
	assert.InDelta(t, lane0+h0, lane1, 0.2, "adjacent lanes touch")

	zero := regexp.MustCompile(`<line x1="[\d.]+" y1="([\d.]+)"`).FindStringSubmatch(out)
	require.Len(t, zero, 2)
	zeroY, _ := strconv.ParseFloat(zero[1], 64)
	assert.Greater(t, lane0, zeroY)
}

func TestRenderPanelHeightsFollowRatio(t *testing.T) {
	c := sampleChart()
	tall := render(t, SVGRenderer{PanelHeight: 500}, c)
	c.Panels[0].HeightRatio = 0.5
	short := render(t, SVGRenderer{PanelHeight: 500}, c)

	height := func(out string) int {
		m := regexp.MustCompile(`<svg width="\d+" height="(\d+)"`).FindStringSubmatch(out)
		require.Len(t, m, 2)
		n, err := strconv.Atoi(m[1])
		require.NoError(t, err)
		return n
	}
	assert.Equal(t, 250, height(tall)-height(short))
}

func TestRenderDegenerateRanges(t *testing.T) {
	c := Chart{XMin: at(0), XMax: at(0), Panels: []Panel{{
		HeightRatio: 1,
		Series:      []LaidOutSeries{{Color: "#123456", Points: []Point{{at(0), 0}}}},
	}}}
	out := render(t, SVGRenderer{}, c)
	assert.NotContains(t, out, "NaN")
	assert.NotContains(t, out, "Inf")
	assert.Contains(t, out, `stroke="#123456"`)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRenderReturnsWriteError(t *testing.T) {
	err := SVGRenderer{}.Render(failingWriter{}, sampleChart())
	assert.EqualError(t, err, "disk full")
}
