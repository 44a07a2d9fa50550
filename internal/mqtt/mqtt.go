// Package mqtt publishes the catch feed to an MQTT broker. A Publisher
// listens on the event bus and sends every saved catch as JSON.
package mqtt

import (
	"context"
	"time"
)

// Client is the broker connection the publisher needs.
type Client interface {
	// Connect connects to the broker and returns once the session is up.
	Connect(ctx context.Context) error

	// Publish sends payload to topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// IsConnected reports whether the broker session is up.
	IsConnected() bool

	// Disconnect closes the connection and stops reconnect attempts.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	Retain   bool
	QoS      byte

	ReconnectCooldown time.Duration
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// DefaultTopic is used when mqtt.topic is empty.
const DefaultTopic = "trolltrack/catches"

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		Topic:             DefaultTopic,
		ReconnectCooldown: 5 * time.Second,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}
