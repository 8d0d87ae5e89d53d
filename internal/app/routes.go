package app

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"

	"dv8.transit.org/internal/middleware"
)

const metricsCacheTTL = 10 * time.Second

// Routes returns the admin HTTP handler: the health check and the cached
// Prometheus exposition, behind the Sentry and security header middleware.
// The metrics cache refreshes until ctx is done.
func (app *Application) Routes(ctx context.Context) http.Handler {
	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthcheckHandler)
	router.Handler(http.MethodGet, "/metrics",
		middleware.NewCachedMetricsHandler(ctx, prometheus.DefaultGatherer, metricsCacheTTL, app.Logger))

	return middleware.SecurityHeaders(middleware.SentryMiddleware(router))
}
