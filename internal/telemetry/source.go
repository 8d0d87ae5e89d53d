package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"dv8.transit.org/internal/config"
	"dv8.transit.org/internal/models"
)

// ErrFetch is matched by every error a Source returns for a failed poll.
var ErrFetch = errors.New("telemetry fetch failed")

// Source produces one snapshot of every route per call.
type Source interface {
	Fetch(ctx context.Context) ([]models.RouteSnapshot, error)
	Name() string
}

// FetchError describes a poll that produced no usable snapshot.
type FetchError struct {
	Source     string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s fetch %s: unexpected status %d", e.Source, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s fetch %s: %v", e.Source, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// NewSource builds the source selected by cfg.Kind.
func NewSource(cfg config.SourceConfig, maxRetries int, client *http.Client, logger *slog.Logger) (Source, error) {
	switch cfg.Kind {
	case "", config.SourceInfoPoint:
		return NewInfoPointSource(cfg.URL, client, maxRetries, logger), nil
	case config.SourceGTFSRealtime:
		return NewGTFSRealtimeSource(cfg.URL, cfg.HeaderKey, cfg.HeaderValue, client, maxRetries, logger), nil
	case config.SourceOneBusAway:
		return NewOneBusAwaySource(cfg.URL, cfg.APIKey, cfg.AgencyID, client, logger), nil
	default:
		return nil, fmt.Errorf("unknown telemetry source kind %q", cfg.Kind)
	}
}

// opStatusFor labels a deviation in minutes the way InfoPoint does for
// sources that carry no status of their own.
func opStatusFor(minutes int, known bool) string {
	switch {
	case !known:
		return "UNKNOWN"
	case minutes > 0:
		return "LATE"
	case minutes < 0:
		return "EARLY"
	default:
		return "ONTIME"
	}
}
