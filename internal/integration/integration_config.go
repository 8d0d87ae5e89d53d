//go:build integration

package integration

import (
	"fmt"
	"io"
	"log/slog"

	"dv8.transit.org/internal/config"
)

// loadIntegrationConfig reads the YAML file named by -integration-config the
// same way the poller does, environment overrides included. Cycles run
// against an in-memory store and publish nowhere.
func loadIntegrationConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return nil, fmt.Errorf("failed to load integration config: %v", err)
	}
	cfg.DatabaseURL = ":memory:"
	cfg.Publish = config.PublishConfig{}
	return cfg, nil
}
