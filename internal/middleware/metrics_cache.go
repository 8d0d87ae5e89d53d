package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// CachedMetricsHandler serves a Prometheus text exposition that is
// re-gathered every ttl instead of on every scrape.
type CachedMetricsHandler struct {
	gatherer prometheus.Gatherer
	ttl      time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	body      []byte
	refreshed time.Time
}

// NewCachedMetricsHandler gathers once and then refreshes in the background
// until ctx is done.
func NewCachedMetricsHandler(ctx context.Context, gatherer prometheus.Gatherer, ttl time.Duration, logger *slog.Logger) *CachedMetricsHandler {
	c := &CachedMetricsHandler{gatherer: gatherer, ttl: ttl, logger: logger}
	c.refresh()
	go c.refreshLoop(ctx)
	return c
}

func (c *CachedMetricsHandler) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refresh()
		}
	}
}

// refresh keeps the previous body when gathering fails outright.
func (c *CachedMetricsHandler) refresh() {
	families, err := c.gatherer.Gather()
	if err != nil {
		c.logger.Warn("gathering metrics", "error", err)
		if len(families) == 0 {
			return
		}
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			c.logger.Warn("encoding metric family", "family", mf.GetName(), "error", err)
			return
		}
	}

	c.mu.Lock()
	c.body = buf.Bytes()
	c.refreshed = time.Now()
	c.mu.Unlock()
}

// Refreshed returns when the cached exposition was last rebuilt.
func (c *CachedMetricsHandler) Refreshed() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshed
}

func (c *CachedMetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	body := c.body
	c.mu.RUnlock()

	w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	_, _ = w.Write(body)
}
