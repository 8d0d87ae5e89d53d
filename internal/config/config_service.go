package config

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/getsentry/sentry-go"
	"dv8.transit.org/internal/report"
	"dv8.transit.org/internal/utils"
)

// ConfigService holds dependencies and provides config operations.
type ConfigService struct {
	Logger *slog.Logger
	Config *Config
}

// NewConfigService creates a new ConfigService for cfg.
func NewConfigService(logger *slog.Logger, cfg *Config) *ConfigService {
	return &ConfigService{
		Logger: logger,
		Config: cfg,
	}
}

// RefreshConfig re-reads the YAML file at filePath every interval and applies
// the settings that are safe to change at runtime. Today that is only the
// excluded route list; onChange is called with the new list whenever it differs.
//
// Errors are logged and reported, and the previous settings stay in effect.
// The routine stops when ctx is cancelled.
func (cs *ConfigService) RefreshConfig(ctx context.Context, filePath string, interval time.Duration, onChange func([]string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cs.Logger.Info("stopping config refresh routine")
			return
		case <-ticker.C:
			changed, err := cs.reload(filePath)
			if err != nil {
				report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
					Tags:  utils.MakeMap("file_path", filePath),
					Level: sentry.LevelWarning,
				})
				cs.Logger.Error("failed to refresh config", "file", filePath, "error", err)
				continue
			}
			if changed && onChange != nil {
				codes := cs.Config.ExcludedRoutes()
				cs.Logger.Info("excluded routes updated", "routes", codes)
				onChange(codes)
			}
		}
	}
}

func (cs *ConfigService) reload(filePath string) (bool, error) {
	fresh := NewConfig()
	if err := loadConfigFromFile(filePath, fresh); err != nil {
		return false, err
	}
	if err := Validate(fresh); err != nil {
		return false, fmt.Errorf("refreshed config rejected: %w", err)
	}

	current := cs.Config.ExcludedRoutes()
	next := fresh.ExcludedRoutes()
	if slices.Equal(current, next) {
		return false, nil
	}
	cs.Config.UpdateExcludedRoutes(next)
	return true, nil
}
