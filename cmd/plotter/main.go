package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/getsentry/sentry-go"

	"dv8.transit.org/internal/config"
	"dv8.transit.org/internal/plotter"
	"dv8.transit.org/internal/render"
	"dv8.transit.org/internal/report"
	"dv8.transit.org/internal/store"
	"dv8.transit.org/internal/timeline"
	"dv8.transit.org/internal/utils"
)

const version = "1.0.0"

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitConfig      = 2
	exitEmptyResult = 3
)

const (
	valueClamped = "clamped"
	valueRaw     = "raw"
)

type options struct {
	env          string
	dbURL        string
	start        string
	end          string
	value        string
	clampLow     float64
	clampHigh    float64
	dateMatch    string
	output       string
	summary      string
	title        string
	includeEmpty bool
	width        int
	panelHeight  int
	barSize      float64
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("plotter", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.env, "env", config.DefaultEnv, "Environment (development|staging|production|testing)")
	fs.StringVar(&opts.dbURL, "db", config.DefaultDatabaseURL, "Database URL or SQLite path")
	fs.StringVar(&opts.start, "start", "", "First service day to plot, YYYYMMDD")
	fs.StringVar(&opts.end, "end", "", "Last service day to plot, YYYYMMDD")
	fs.StringVar(&opts.value, "value", valueClamped, "Plotted value (clamped|raw)")
	fs.Float64Var(&opts.clampLow, "clamp-low", timeline.DefaultClampLow, "Lower bound of clamped deviation, minutes")
	fs.Float64Var(&opts.clampHigh, "clamp-high", timeline.DefaultClampHigh, "Upper bound of clamped deviation, minutes")
	fs.StringVar(&opts.dateMatch, "date-match", "day", "How dates are compared with -start and -end (day|calendar)")
	fs.StringVar(&opts.output, "output", "", "Output SVG path (default deviation.svg, or output.svg for -value raw)")
	fs.StringVar(&opts.summary, "summary", "", "Optional path for a JSON summary of the report")
	fs.StringVar(&opts.title, "title", "Schedule deviation by route", "Chart title")
	fs.BoolVar(&opts.includeEmpty, "include-empty", false, "Keep routes without points in range as empty panels")
	fs.IntVar(&opts.width, "width", render.DefaultWidth, "Chart width in pixels")
	fs.IntVar(&opts.panelHeight, "panel-height", render.DefaultPanelHeight, "Height of the tallest route panel in pixels")
	fs.Float64Var(&opts.barSize, "bar-size", render.DefaultBarSize, "Height of one lane bar, in y units")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := config.ValidateConfigFlags(fs.Args()); err != nil {
		return nil, err
	}
	if opts.output == "" {
		opts.output = "deviation.svg"
		if opts.value == valueRaw {
			opts.output = "output.svg"
		}
	}
	return opts, nil
}

// buildGrouper turns the report flags into a Grouper. Every error it returns
// matches timeline.ErrConfiguration.
func buildGrouper(opts *options) (timeline.Grouper, error) {
	g := timeline.Grouper{}

	switch opts.value {
	case valueClamped:
		if opts.clampLow >= opts.clampHigh {
			return g, &timeline.ConfigurationError{
				Param: "clamp bounds",
				Value: fmt.Sprintf("%g..%g", opts.clampLow, opts.clampHigh),
				Err:   errors.New("low bound must be below high bound"),
			}
		}
		g.Value = timeline.ClampedDeviation(opts.clampLow, opts.clampHigh)
	case valueRaw:
		g.Value = timeline.RawDeviation
	default:
		return g, &timeline.ConfigurationError{Param: "value", Value: opts.value, Err: errors.New("want clamped or raw")}
	}

	mode, err := timeline.ParseMatchMode(opts.dateMatch)
	if err != nil {
		return g, err
	}
	if opts.start != "" || opts.end != "" {
		if g.Range, err = timeline.ParseDateRange(opts.start, opts.end, mode, nil); err != nil {
			return g, err
		}
	}
	return g, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	logger := slog.New(slog.NewTextHandler(stdout, nil))

	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, "Error:", err)
		return exitConfig
	}

	grouper, err := buildGrouper(opts)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitConfig
	}

	if err := report.SetupSentry(opts.env, "plotter"); err != nil {
		logger.Warn("sentry disabled", "error", err)
	}
	defer report.FlushSentry()
	report.ConfigureScope(opts.env, version)

	db, err := store.Open(ctx, opts.dbURL, logger)
	if err != nil {
		report.ReportError(err, sentry.LevelError)
		logger.Error("failed to open store", "error", err)
		return exitFailure
	}
	defer db.Close()

	p := &plotter.Plotter{
		Open: func(ctx context.Context) (plotter.Snapshot, error) {
			snap, err := db.Snapshot(ctx)
			if err != nil {
				return nil, err
			}
			return snap, nil
		},
		Grouper: grouper,
		Renderer: render.SVGRenderer{
			Width:       opts.width,
			PanelHeight: opts.panelHeight,
			BarSize:     opts.barSize,
		},
		Logger:       logger,
		Title:        opts.title,
		IncludeEmpty: opts.includeEmpty,
	}

	var buf bytes.Buffer
	result, err := p.Run(ctx, &buf)
	switch {
	case errors.Is(err, plotter.ErrEmptyDataset):
		fmt.Fprintln(stderr, "Error:", err)
		return exitEmptyResult
	case err != nil:
		report.ReportError(err, sentry.LevelError)
		logger.Error("failed to build report", "error", err)
		return exitFailure
	}

	if err := writeOutput(opts.output, buf.Bytes(), logger); err != nil {
		logger.Error("failed to write chart", "path", opts.output, "error", err)
		return exitFailure
	}
	logger.Info("chart written", "path", opts.output, "routes", len(result.Routes), "points", result.Points)

	if opts.summary != "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			logger.Error("failed to encode summary", "error", err)
			return exitFailure
		}
		if err := writeOutput(opts.summary, append(data, '\n'), logger); err != nil {
			logger.Error("failed to write summary", "path", opts.summary, "error", err)
			return exitFailure
		}
	}
	return exitOK
}

func writeOutput(path string, data []byte, logger *slog.Logger) error {
	if err := utils.EnsureOutputDirectory(filepath.Dir(path), logger); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
