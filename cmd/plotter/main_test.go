package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dv8.transit.org/internal/models"
	"dv8.transit.org/internal/store"
)

func seedDatabase(t *testing.T, path string) {
	t.Helper()
	ctx := context.Background()

	db, err := store.Open(ctx, path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.Begin(ctx)
	require.NoError(t, err)

	route := &models.Route{Code: "17", Name: "Ensley"}
	require.NoError(t, tx.InsertRoute(ctx, route))
	trip := &models.Trip{RouteID: route.ID, Code: "1623", RunCode: "4101", Name: "bus 4101"}
	require.NoError(t, tx.InsertTrip(ctx, trip))

	start := time.Date(2024, time.March, 5, 7, 0, 0, 0, time.Local)
	for i, deviation := range []int{0, 3, -12, 25} {
		require.NoError(t, tx.AppendWaypoint(ctx, &models.WayPoint{
			TripID:    trip.ID,
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Latitude:  33.48 + float64(i)*0.001,
			Longitude: -86.88,
			Deviation: deviation,
		}))
	}
	require.NoError(t, tx.Commit())
}

func TestRunWritesChartAndSummary(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "poller.db")
	seedDatabase(t, dbPath)

	output := filepath.Join(dir, "charts", "deviation.svg")
	summary := filepath.Join(dir, "charts", "summary.json")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-env", "testing",
		"-db", dbPath,
		"-output", output,
		"-summary", summary,
	}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	svg, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(svg), "<?xml"), "output is an SVG document")
	assert.Contains(t, string(svg), "</svg>")
	assert.Contains(t, string(svg), "17 Ensley")

	data, err := os.ReadFile(summary)
	require.NoError(t, err)
	var got struct {
		Points int `json:"points"`
		Routes []struct {
			Code string  `json:"code"`
			MinY float64 `json:"min_y"`
			MaxY float64 `json:"max_y"`
		} `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 4, got.Points)
	require.Len(t, got.Routes, 1)
	assert.Equal(t, "17", got.Routes[0].Code)
	assert.Equal(t, -10.0, got.Routes[0].MinY, "deviation is clamped by default")
	assert.Equal(t, 20.0, got.Routes[0].MaxY)
}

func TestRunRawValues(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "poller.db")
	seedDatabase(t, dbPath)

	summary := filepath.Join(dir, "summary.json")
	t.Chdir(dir)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-env", "testing", "-db", dbPath, "-value", "raw", "-summary", summary}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	_, err := os.Stat(filepath.Join(dir, "output.svg"))
	assert.NoError(t, err, "raw charts default to output.svg")

	data, err := os.ReadFile(summary)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"min_y": -12`)
	assert.Contains(t, string(data), `"max_y": 25`)
}

func TestRunEmptyDataset(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "poller.db")
	seedDatabase(t, dbPath)
	output := filepath.Join(dir, "deviation.svg")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-env", "testing",
		"-db", dbPath,
		"-output", output,
		"-start", "20240310",
		"-end", "20240311",
		"-date-match", "calendar",
	}, &stdout, &stderr)

	assert.Equal(t, exitEmptyResult, code)
	assert.Contains(t, stderr.String(), "no data points found in this date range")
	_, err := os.Stat(output)
	assert.True(t, os.IsNotExist(err), "no chart is written for an empty window")
}

func TestRunConfigurationErrors(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "never-created.db")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "bad start date", args: []string{"-start", "2024-03-05"}, want: "start date"},
		{name: "bad end date", args: []string{"-end", "20241305"}, want: "end date"},
		{name: "unknown value", args: []string{"-value", "smoothed"}, want: "value"},
		{name: "unknown date match", args: []string{"-date-match", "week"}, want: "date match"},
		{name: "inverted clamp", args: []string{"-clamp-low", "5", "-clamp-high", "5"}, want: "clamp bounds"},
		{name: "positional argument", args: []string{"extra"}, want: "unexpected arguments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			args := append([]string{"-env", "testing", "-db", dbPath}, tt.args...)
			code := run(context.Background(), args, &stdout, &stderr)

			assert.Equal(t, exitConfig, code)
			assert.Contains(t, stderr.String(), tt.want)
		})
	}

	_, err := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err), "configuration errors are reported before the store is opened")
}
