package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"dv8.transit.org/internal/config"
	"dv8.transit.org/internal/gtfs"
	"dv8.transit.org/internal/ingest"
	"dv8.transit.org/internal/metrics"
	"dv8.transit.org/internal/publisher"
	"dv8.transit.org/internal/store"
	"dv8.transit.org/internal/telemetry"
)

// Intervals of the background routines started by Start.
const (
	configRefreshInterval = time.Minute
	trackerClearInterval  = time.Minute
	trackerRetention      = 15 * time.Minute
	catalogRefresh        = 24 * time.Hour
	catalogTimeout        = 2 * time.Minute
)

// Application wires the poller service together: the entity store, the
// telemetry source, the resolver and poll loop, and the optional publishers.
type Application struct {
	ConfigService *config.ConfigService
	Store         *store.Store
	Resolver      *ingest.Resolver
	Poller        *ingest.Poller
	Tracker       *metrics.TripTracker
	Publisher     *publisher.Multi
	Logger        *slog.Logger
	Version       string
	// Catalog is set when a gtfsrt source has a static bundle to name routes.
	Catalog *gtfs.CatalogService
}

// New opens the store and connects every configured sink. The caller owns
// the returned Application and must Close it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, client *http.Client, version string) (*Application, error) {
	source, err := telemetry.NewSource(cfg.Source, cfg.MaxRetries, client, logger)
	if err != nil {
		return nil, err
	}

	var catalog *gtfs.CatalogService
	if rt, ok := source.(*telemetry.GTFSRealtimeSource); ok && cfg.Source.StaticURL != "" {
		catalog = &gtfs.CatalogService{
			URL:        cfg.Source.StaticURL,
			Client:     NewPooledClient(catalogTimeout),
			Catalog:    gtfs.NewRouteCatalog(),
			Logger:     logger,
			MaxRetries: cfg.MaxRetries,
		}
		rt.Routes = catalog.Catalog
	}

	db, err := store.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	pub, err := publisher.NewFromConfig(cfg.Publish, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	resolver := ingest.NewResolver(cfg.ExcludedRoutes(), logger)
	tracker := metrics.NewTripTracker(metrics.DefaultMaxPlausibleSpeed)

	poller := ingest.NewPoller(source, func(ctx context.Context) (ingest.UnitOfWork, error) {
		tx, err := db.Begin(ctx)
		if err != nil {
			return nil, err
		}
		return tx, nil
	}, resolver, logger)
	poller.Interval = cfg.PollInterval
	poller.FetchTimeout = cfg.FetchTimeout
	poller.Tracker = tracker
	if pub.Len() > 0 {
		poller.Publisher = pub
	}

	return &Application{
		ConfigService: config.NewConfigService(logger, cfg),
		Store:         db,
		Resolver:      resolver,
		Poller:        poller,
		Tracker:       tracker,
		Publisher:     pub,
		Logger:        logger,
		Version:       version,
		Catalog:       catalog,
	}, nil
}

// Start launches the poll loop and the trip tracker sweep, plus the route
// catalog refresh and the config refresh when they apply. All of them stop
// with ctx.
func (app *Application) Start(ctx context.Context, configFile string) {
	if app.Catalog != nil {
		go app.Catalog.RefreshRoutine(ctx, catalogRefresh)
	}
	go func() {
		if err := app.Poller.Run(ctx); err != nil && ctx.Err() == nil {
			app.Logger.Error("poller exited", "error", err)
		}
	}()
	go app.Tracker.ClearRoutine(ctx, trackerClearInterval, trackerRetention)

	if configFile != "" {
		go app.ConfigService.RefreshConfig(ctx, configFile, configRefreshInterval, app.Resolver.SetExcluded)
	}
}

// Close releases the publishers and the store.
func (app *Application) Close() error {
	pubErr := app.Publisher.Close()
	if err := app.Store.Close(); err != nil {
		return err
	}
	return pubErr
}
