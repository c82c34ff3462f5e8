package learning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/levenlabs/go-lflag"
	"github.com/powercast/powercast/pkg/types"
)

const mqttPublishTimeout = 10 * time.Second

// publisher is the subset of mqtt.Client used by MQTTSink.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTSink publishes events as JSON to an MQTT broker.
type MQTTSink struct {
	broker   string
	clientID string
	username string
	password string
	prefix   string
	qos      byte

	client publisher
}

func configuredMQTT() *MQTTSink {
	broker := lflag.String("mqtt-broker", "tcp://localhost:1883", "MQTT broker URL")
	clientID := lflag.String("mqtt-client-id", "powercast", "MQTT client id")
	username := lflag.String("mqtt-username", "", "MQTT username")
	password := lflag.String("mqtt-password", "", "MQTT password")
	prefix := lflag.String("mqtt-topic-prefix", "powercast", "Prefix of every published MQTT topic")

	m := &MQTTSink{qos: 1}

	lflag.Do(func() {
		m.broker = *broker
		m.clientID = *clientID
		m.username = *username
		m.password = *password
		m.prefix = *prefix
	})

	return m
}

func (m *MQTTSink) Validate() error {
	if m.broker == "" {
		return errors.New("mqtt-broker is required")
	}
	if m.prefix == "" {
		return errors.New("mqtt-topic-prefix is required")
	}
	return nil
}

// Connect dials the broker. The client keeps reconnecting on its own
// afterwards.
func (m *MQTTSink) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.broker)
	opts.SetClientID(m.clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	if m.username != "" {
		opts.SetUsername(m.username)
	}
	if m.password != "" {
		opts.SetPassword(m.password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}
	m.client = client
	return nil
}

func (m *MQTTSink) Name() string {
	return "mqtt"
}

func (m *MQTTSink) publish(ctx context.Context, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	token := m.client.Publish(topic, m.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttPublishTimeout):
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// PublishForecast publishes to {prefix}/forecasts/{region}.
func (m *MQTTSink) PublishForecast(ctx context.Context, event types.ForecastEvent) error {
	return m.publish(ctx, fmt.Sprintf("%s/forecasts/%s", m.prefix, event.RegionCode), event)
}

// PublishError publishes to {prefix}/errors/{severity}.
func (m *MQTTSink) PublishError(ctx context.Context, fe types.ForecastError) error {
	return m.publish(ctx, fmt.Sprintf("%s/errors/%s", m.prefix, fe.Severity), fe)
}

func (m *MQTTSink) Close() error {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	return nil
}
