package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// TopicPrefix is prepended to every MQTT topic.
const TopicPrefix = "dv8/waypoints"

const mqttPublishTimeout = 5 * time.Second

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes each event at QoS 0 on dv8/waypoints/<route>.
type MQTTPublisher struct {
	client mqttClient
	logger *slog.Logger
}

func NewMQTTPublisher(url string, logger *slog.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(url)
	opts.SetClientID("dv8-poller-" + time.Now().Format("20060102150405"))
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		logger.Warn("mqtt broker not reachable yet, retrying in background", "broker", url)
	} else if err := token.Error(); err != nil {
		return nil, err
	}
	return &MQTTPublisher{client: client, logger: logger}, nil
}

func (p *MQTTPublisher) sinkName() string { return "mqtt" }

func (p *MQTTPublisher) Publish(ctx context.Context, ev WaypointEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	token := p.client.Publish(mqttTopic(ev.RouteCode), 0, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttPublishTimeout):
		return errors.New("mqtt publish timed out")
	}
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}

func mqttTopic(route string) string {
	return TopicPrefix + "/" + subjectToken(route)
}
