package gtfs

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	remoteGtfs "github.com/jamespfennell/gtfs"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupBundleServer serves body with the given status on every request.
func setupBundleServer(t *testing.T, status int, body []byte) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func stopAt(id string, lat, lon float64) remoteGtfs.Stop {
	return remoteGtfs.Stop{Id: id, Latitude: &lat, Longitude: &lon}
}
