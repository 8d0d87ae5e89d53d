//go:build integration

package integration

import (
	"flag"
	"fmt"
	"os"
	"testing"

	"dv8.transit.org/internal/config"
)

var integrationConfig string

func init() {
	flag.StringVar(&integrationConfig, "integration-config", "", "Path to integration configuration file")
}

var integrationCfg *config.Config

func TestMain(m *testing.M) {
	flag.Parse()

	if integrationConfig == "" {
		fmt.Fprintln(os.Stderr, "Error: -integration-config flag is required for integration tests")
		os.Exit(1)
	}

	cfg, err := loadIntegrationConfig(integrationConfig)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	integrationCfg = cfg

	os.Exit(m.Run())
}
