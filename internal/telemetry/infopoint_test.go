package telemetry

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/dnaeon/go-vcr.v4/pkg/cassette"
	"gopkg.in/dnaeon/go-vcr.v4/pkg/recorder"

	"dv8.transit.org/internal/config"
	"dv8.transit.org/internal/models"
)

func TestInfoPointFetch_WithVCR(t *testing.T) {
	rec, err := recorder.New(filepath.Join("testdata", "vcr", "infopoint_get_all_routes"),
		recorder.WithMode(recorder.ModeReplayOnly),
		recorder.WithMatcher(func(r *http.Request, i cassette.Request) bool {
			return r.Method == i.Method && r.URL.String() == i.URL
		}),
	)
	require.NoError(t, err)
	defer rec.Stop()

	client := &http.Client{Transport: rec, Timeout: 10 * time.Second}
	src := NewInfoPointSource(config.DefaultFeedURL, client, 0, discardLogger())

	snapshots, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshots, 3)

	first := snapshots[0]
	assert.Equal(t, "1", first.Code.String())
	assert.Equal(t, "1 South Bessemer", first.Name)
	require.Len(t, first.Vehicles, 2)

	v := first.Vehicles[0]
	assert.Equal(t, "1623", v.TripCode.String())
	assert.Equal(t, "4101", v.RunCode.String())
	assert.Equal(t, "LATE", v.OpStatus)
	assert.Equal(t, "", v.Driver, "null driver stays empty")
	dev, err := v.Deviation.Int()
	require.NoError(t, err)
	assert.Equal(t, 3, dev)
	assert.Equal(t, "1187", first.Vehicles[1].Driver)

	assert.Equal(t, "80", snapshots[1].Code.String())
	assert.Empty(t, snapshots[1].Vehicles)

	quoted := snapshots[2].Vehicles[0]
	assert.Equal(t, "9911", quoted.TripCode.String(), "quoted codes normalise the same as numeric ones")
	_, err = quoted.Latitude.Float()
	assert.ErrorIs(t, err, models.ErrFieldMissing)
}

func TestInfoPointFetch(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		status     int
		wantErr    bool
		wantStatus int
		wantRoutes int
	}{
		{
			name:       "object valued field does not spoil the feed",
			body:       `[{"RouteId":3,"LongName":"3 Southside","Vehicles":[{"TripId":1,"RunId":2,"Latitude":{"lat":1},"Longitude":-86.8,"Deviation":0,"OnBoard":1}]}]`,
			status:     http.StatusOK,
			wantRoutes: 1,
		},
		{
			name:   "invalid json",
			body:   `{"RouteId":`,
			status: http.StatusOK, wantErr: true,
		},
		{
			name:   "not found is not retried",
			body:   `missing`,
			status: http.StatusNotFound, wantErr: true, wantStatus: http.StatusNotFound,
		},
		{
			name:   "server error exhausts retries",
			body:   `oops`,
			status: http.StatusBadGateway, wantErr: true,
		},
		{
			name:   "empty feed",
			body:   `[]`,
			status: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotContentType string
			server := setupFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
				gotContentType = r.Header.Get("Content-Type")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			src := NewInfoPointSource(server.URL, server.Client(), 0, discardLogger())
			snapshots, err := src.Fetch(context.Background())
			assert.Equal(t, "application/json", gotContentType)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrFetch)
				var fe *FetchError
				require.True(t, errors.As(err, &fe))
				assert.Equal(t, "infopoint", fe.Source)
				assert.Equal(t, tt.wantStatus, fe.StatusCode)
				return
			}
			require.NoError(t, err)
			assert.Len(t, snapshots, tt.wantRoutes)
		})
	}
}

func TestInfoPointFetchHonoursContext(t *testing.T) {
	server := setupFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	src := NewInfoPointSource(server.URL, server.Client(), 0, discardLogger())
	_, err := src.Fetch(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
