package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"dv8.transit.org/internal/report"
	"dv8.transit.org/internal/utils"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateConfigFlags rejects positional arguments; every setting is passed
// as a flag, a config file or an environment variable.
func ValidateConfigFlags(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments %q: use --config-file or flags", args)
	}
	return nil
}

// Load builds the configuration from defaults, an optional .env file, an
// optional YAML file and the process environment, in that order of precedence.
// The result is validated before it is returned.
func Load(filePath string, logger *slog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to load .env file", "error", err)
	}

	cfg := NewConfig()
	if filePath != "" {
		if err := loadConfigFromFile(filePath, cfg); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// loadConfigFromFile reads a YAML configuration file from disk and overlays it
// onto cfg. Keys missing from the file keep their current values.
//
// On error, it reports issues to Sentry and returns a descriptive error.
func loadConfigFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("file_path", filePath),
			Level: sentry.LevelError,
		})
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("file_path", filePath),
			Level: sentry.LevelError,
		})
		return fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return nil
}

// ApplyEnv overlays environment variables onto cfg. lookup is usually os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("DV8_DATABASE_URL"); ok && v != "" {
		cfg.DatabaseURL = v
	}
	if v, ok := lookup("DV8_FEED_URL"); ok && v != "" {
		cfg.Source.URL = v
	}
	if v, ok := lookup("DV8_SOURCE_KIND"); ok && v != "" {
		cfg.Source.Kind = v
	}
	if v, ok := lookup("DV8_STATIC_URL"); ok && v != "" {
		cfg.Source.StaticURL = v
	}
	if v, ok := lookup("DV8_API_KEY"); ok && v != "" {
		cfg.Source.APIKey = v
	}
	if v, ok := lookup("DV8_POLL_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DV8_POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = d
	}
	if v, ok := lookup("DV8_MAX_RETRIES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DV8_MAX_RETRIES: %w", err)
		}
		cfg.MaxRetries = n
	}
	if v, ok := lookup("DV8_EXCLUDED_ROUTES"); ok {
		cfg.ExcludedCodes = splitList(v)
	}
	if v, ok := lookup("NATS_URL"); ok && v != "" {
		cfg.Publish.NATSURL = v
	}
	if v, ok := lookup("REDIS_URL"); ok && v != "" {
		cfg.Publish.RedisURL = v
	}
	if v, ok := lookup("MQTT_URL"); ok && v != "" {
		cfg.Publish.MQTTURL = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
