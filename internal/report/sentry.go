package report

import (
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
)

// SetupSentry initialises the Sentry client from SENTRY_DSN. An empty DSN
// leaves Sentry disabled, which makes every report a no-op.
func SetupSentry(env, component string) error {
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              os.Getenv("SENTRY_DSN"),
		Environment:      env,
		ServerName:       component,
		EnableTracing:    true,
		TracesSampleRate: 0.2,
	}); err != nil {
		return fmt.Errorf("sentry.Init: %w", err)
	}
	sentry.CaptureMessage(component + " started")
	return nil
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
