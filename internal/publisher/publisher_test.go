package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dv8.transit.org/internal/config"
	"dv8.transit.org/internal/metrics"
	"dv8.transit.org/internal/models"
)

type fakeNATS struct {
	subjects []string
	payloads [][]byte
	drained  bool
	closed   bool
	err      error
}

func (f *fakeNATS) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func (f *fakeNATS) Drain() error { f.drained = true; return nil }
func (f *fakeNATS) Close()       { f.closed = true }

type fakeRedis struct {
	channels []string
	err      error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channels = append(f.channels, channel)
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func (f *fakeRedis) Close() error { return nil }

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeMQTT struct {
	topics []string
}

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.topics = append(f.topics, topic)
	return doneToken{}
}

func (f *fakeMQTT) Disconnect(uint) {}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleEvent() WaypointEvent {
	return NewWaypointEvent("cycle-1",
		models.Route{ID: 1, Code: "44", Name: "Montclair"},
		models.Trip{ID: 9, RouteID: 1, Code: "1623.a", RunCode: "4101"},
		models.WayPoint{ID: 77, TripID: 9, Timestamp: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
			Latitude: 33.52, Longitude: -86.81, Deviation: 2, OpStatus: "LATE", OnBoard: 11, Direction: "Inbound"},
	)
}

func TestSubjectToken(t *testing.T) {
	tests := map[string]string{
		"44":        "44",
		" 1623.a ":  "1623_a",
		"Route 3/4": "Route_3_4",
		"*":         "_",
		"":          "_",
		"a>b":       "a_b",
	}
	for in, want := range tests {
		assert.Equal(t, want, subjectToken(in), "subjectToken(%q)", in)
	}
	assert.Equal(t, "dv8.waypoints.44.1623_a", natsSubject("44", "1623.a"))
	assert.Equal(t, "dv8/waypoints/44", mqttTopic("44"))
}

func TestWaypointEvent(t *testing.T) {
	ev := sampleEvent()
	assert.NotEmpty(t, ev.Cell)
	assert.Equal(t, "4101", ev.RunCode)

	b, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "driver", "empty driver is omitted")
	assert.Contains(t, string(b), `"route":"44"`)
}

func TestMultiPublishesToEverySink(t *testing.T) {
	nc := &fakeNATS{}
	rc := &fakeRedis{}
	mc := &fakeMQTT{}
	m := &Multi{sinks: []namedPublisher{
		&NATSPublisher{nc: nc, logger: discardLogger()},
		&RedisPublisher{client: rc, logger: discardLogger()},
		&MQTTPublisher{client: mc, logger: discardLogger()},
	}}

	require.NoError(t, m.Publish(context.Background(), sampleEvent()))
	assert.Equal(t, []string{"dv8.waypoints.44.1623_a"}, nc.subjects)
	assert.Equal(t, []string{RedisChannel}, rc.channels)
	assert.Equal(t, []string{"dv8/waypoints/44"}, mc.topics)

	var decoded WaypointEvent
	require.NoError(t, json.Unmarshal(nc.payloads[0], &decoded))
	assert.Equal(t, int64(77), decoded.WaypointID)

	require.NoError(t, m.Close())
	assert.True(t, nc.drained)
	assert.True(t, nc.closed)
}

func TestMultiJoinsSinkErrors(t *testing.T) {
	natsErr := errors.New("nats down")
	redisErr := errors.New("redis down")
	mc := &fakeMQTT{}
	m := &Multi{sinks: []namedPublisher{
		&NATSPublisher{nc: &fakeNATS{err: natsErr}, logger: discardLogger()},
		&RedisPublisher{client: &fakeRedis{err: redisErr}, logger: discardLogger()},
		&MQTTPublisher{client: mc, logger: discardLogger()},
	}}

	before := testutil.ToFloat64(metrics.PublishErrors.WithLabelValues("redis"))
	err := m.Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, natsErr)
	assert.ErrorIs(t, err, redisErr)
	assert.Len(t, mc.topics, 1, "a failing sink does not starve the others")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PublishErrors.WithLabelValues("redis")))
}

func TestNewFromConfig(t *testing.T) {
	m, err := NewFromConfig(config.PublishConfig{}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
	require.NoError(t, m.Publish(context.Background(), sampleEvent()))

	_, err = NewFromConfig(config.PublishConfig{RedisURL: "http://localhost:6379"}, discardLogger())
	assert.Error(t, err)

	m, err = NewFromConfig(config.PublishConfig{RedisURL: "redis://localhost:6379/0"}, discardLogger())
	require.NoError(t, err, "redis connects lazily")
	assert.Equal(t, 1, m.Len())
	require.NoError(t, m.Close())
}
