package app

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus is the body of GET /v1/healthcheck.
//
// Ready turns true once the poller has committed its first cycle and stays
// true while cycles keep committing within staleAfter.
type HealthStatus struct {
	Status      string     `json:"status"`
	Environment string     `json:"environment"`
	Version     string     `json:"version"`
	Source      string     `json:"source"`
	LastSuccess *time.Time `json:"last_success"`
	Ready       bool       `json:"ready"`
}

// staleCycles is how many poll intervals may pass without a committed cycle
// before the service reports itself unready.
const staleCycles = 5

func (app *Application) healthcheckHandler(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:      "available",
		Environment: app.ConfigService.Config.Env,
		Version:     app.Version,
		Source:      app.Poller.Source.Name(),
	}

	if last := app.Poller.LastSuccess(); !last.IsZero() {
		status.LastSuccess = &last
		staleAfter := time.Duration(staleCycles) * app.Poller.Interval
		status.Ready = app.Poller.Interval <= 0 || time.Since(last) <= staleAfter
	}
	if !status.Ready {
		status.Status = "unavailable"
	}

	w.Header().Set("Content-Type", "application/json")
	if !status.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		app.Logger.Error("failed to write healthcheck response", "error", err)
	}
}
