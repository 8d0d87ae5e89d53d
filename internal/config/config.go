package config

import (
	"sync"
	"time"
)

const (
	DefaultPort         = 4000
	DefaultEnv          = "development"
	DefaultDatabaseURL  = "poller.db"
	DefaultPollInterval = 30 * time.Second
	DefaultFetchTimeout = 20 * time.Second
	DefaultMaxRetries   = 2
	DefaultFeedURL      = "https://realtimebjcta.availtec.com/InfoPoint/rest/Routes/GetAllRoutes"
)

// Telemetry source kinds accepted in source.kind.
const (
	SourceInfoPoint    = "infopoint"
	SourceGTFSRealtime = "gtfsrt"
	SourceOneBusAway   = "oba"
)

// DefaultExcludedRoutes are sentinel routes the InfoPoint feed reports
// alongside real service; they carry no usable trips.
var DefaultExcludedRoutes = []string{"80", "999"}

// Config holds all the configuration settings for the poller.
//
// Fields are read once at startup, except the excluded route list which
// can change on a config refresh and must be read through ExcludedRoutes.
type Config struct {
	Port          int           `yaml:"port" validate:"gte=0,lte=65535"`
	Env           string        `yaml:"env" validate:"oneof=development staging production testing"`
	DatabaseURL   string        `yaml:"database_url" validate:"required"`
	PollInterval  time.Duration `yaml:"poll_interval" validate:"gt=0"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout" validate:"gt=0"`
	MaxRetries    int           `yaml:"max_retries" validate:"gte=0,lte=10"`
	ExcludedCodes []string      `yaml:"excluded_routes" validate:"dive,required"`
	Source        SourceConfig  `yaml:"source"`
	Publish       PublishConfig `yaml:"publish"`
	Mu            sync.RWMutex  `yaml:"-" validate:"-"`
}

// SourceConfig selects and parameterises the telemetry source.
type SourceConfig struct {
	Kind        string `yaml:"kind" validate:"oneof=infopoint gtfsrt oba"`
	URL         string `yaml:"url" validate:"required,url"`
	APIKey      string `yaml:"api_key" validate:"required_if=Kind oba"`
	AgencyID    string `yaml:"agency_id" validate:"required_if=Kind oba"`
	HeaderKey   string `yaml:"header_key"`
	HeaderValue string `yaml:"header_value" validate:"required_with=HeaderKey"`
	// StaticURL is an optional GTFS static bundle used to name gtfsrt routes.
	StaticURL string `yaml:"static_url" validate:"omitempty,url"`
}

// PublishConfig lists the optional downstream sinks for committed waypoints.
type PublishConfig struct {
	NATSURL  string `yaml:"nats_url" validate:"omitempty,url"`
	RedisURL string `yaml:"redis_url" validate:"omitempty,url"`
	MQTTURL  string `yaml:"mqtt_url" validate:"omitempty,url"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Port:          DefaultPort,
		Env:           DefaultEnv,
		DatabaseURL:   DefaultDatabaseURL,
		PollInterval:  DefaultPollInterval,
		FetchTimeout:  DefaultFetchTimeout,
		MaxRetries:    DefaultMaxRetries,
		ExcludedCodes: append([]string(nil), DefaultExcludedRoutes...),
		Source: SourceConfig{
			Kind: SourceInfoPoint,
			URL:  DefaultFeedURL,
		},
	}
}

// UpdateExcludedRoutes safely replaces the excluded route codes.
func (cfg *Config) UpdateExcludedRoutes(codes []string) {
	cfg.Mu.Lock()
	defer cfg.Mu.Unlock()
	cfg.ExcludedCodes = append([]string(nil), codes...)
}

// ExcludedRoutes safely returns a copy of the excluded route codes.
func (cfg *Config) ExcludedRoutes() []string {
	cfg.Mu.RLock()
	defer cfg.Mu.RUnlock()
	return append([]string(nil), cfg.ExcludedCodes...)
}
