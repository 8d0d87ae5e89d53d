package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"dv8.transit.org/internal/app"
	"dv8.transit.org/internal/config"
	"dv8.transit.org/internal/report"
)

const version = "1.0.0"

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		port       = flag.Int("port", config.DefaultPort, "Admin HTTP server port (healthcheck and metrics)")
		env        = flag.String("env", config.DefaultEnv, "Environment (development|staging|production|testing)")
		configFile = flag.String("config-file", "", "Path to a YAML configuration file")
		dbURL      = flag.String("db", "", "Database URL or SQLite path (overrides the config file)")
		interval   = flag.Duration("interval", 0, "Poll interval (overrides the config file)")
	)
	flag.Parse()

	if err := config.ValidateConfigFlags(flag.Args()); err != nil {
		fmt.Println("Error:", err)
		flag.Usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load(*configFile, logger)
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags given on the command line win over the file and the environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "env":
			cfg.Env = *env
		case "db":
			cfg.DatabaseURL = *dbURL
		case "interval":
			cfg.PollInterval = *interval
		}
	})
	if err := config.Validate(cfg); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if err := report.SetupSentry(cfg.Env, "poller"); err != nil {
		logger.Warn("sentry disabled", "error", err)
	}
	defer report.FlushSentry()
	report.ConfigureScope(cfg.Env, version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger, app.NewPooledClient(cfg.FetchTimeout), version)
	if err != nil {
		report.ReportError(err, sentry.LevelFatal)
		logger.Error("failed to start poller", "error", err)
		report.FlushSentry()
		os.Exit(1)
	}
	defer application.Close()

	application.Start(ctx, *configFile)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      application.Routes(ctx),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr, "env", cfg.Env, "source", application.Poller.Source.Name())
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			report.ReportError(err, sentry.LevelFatal)
			logger.Error("server failed", "error", err)
			stop()
			application.Close()
			report.FlushSentry()
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}
}
