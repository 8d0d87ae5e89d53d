package gtfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	remoteGtfs "github.com/jamespfennell/gtfs"

	"dv8.transit.org/internal/config"
	"dv8.transit.org/internal/report"
	"dv8.transit.org/internal/utils"
)

// maxBundleBytes caps a static bundle download.
const maxBundleBytes = 256 << 20

// DownloadBundle fetches and parses the GTFS static bundle at url.
func DownloadBundle(ctx context.Context, client *http.Client, url string, maxRetries int) (*remoteGtfs.Static, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}

	resp, err := config.DoWithBackoff(ctx, client, req, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to make GET request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected response status %d when downloading GTFS bundle from %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBundleBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read GTFS bundle response body from %s: %w", url, err)
	}

	staticBundle, err := remoteGtfs.ParseStatic(data, remoteGtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse GTFS static data from %s: %w", url, err)
	}
	return staticBundle, nil
}

// CatalogService keeps a RouteCatalog filled from a static bundle URL.
type CatalogService struct {
	URL        string
	Client     *http.Client
	Catalog    *RouteCatalog
	Logger     *slog.Logger
	MaxRetries int
}

// Refresh downloads the bundle once and replaces the catalog contents. On
// failure the previous contents stay in place.
func (cs *CatalogService) Refresh(ctx context.Context) error {
	bundle, err := DownloadBundle(ctx, cs.Client, cs.URL, cs.MaxRetries)
	if err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("static_url", cs.URL),
			Level: sentry.LevelWarning,
		})
		return err
	}

	cs.Catalog.Set(bundle.Routes, bundle.Stops)
	bundle = nil // drop reference, GC can collect earlier

	attrs := []any{"routes", cs.Catalog.Len()}
	if bb, ok := cs.Catalog.Bounds(); ok {
		attrs = append(attrs, "min_lat", bb.MinLat, "max_lat", bb.MaxLat, "min_lon", bb.MinLon, "max_lon", bb.MaxLon)
	}
	cs.Logger.Info("loaded GTFS route catalog", attrs...)
	return nil
}

// RefreshRoutine refreshes the catalog immediately and then every interval
// until ctx is cancelled.
func (cs *CatalogService) RefreshRoutine(ctx context.Context, interval time.Duration) {
	if err := cs.Refresh(ctx); err != nil {
		cs.Logger.Error("failed to load GTFS route catalog", "url", cs.URL, "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			cs.Logger.Info("stopping GTFS route catalog refresh")
			return
		case <-ticker.C:
			if err := cs.Refresh(ctx); err != nil {
				cs.Logger.Error("failed to refresh GTFS route catalog", "url", cs.URL, "error", err)
			}
		}
	}
}
