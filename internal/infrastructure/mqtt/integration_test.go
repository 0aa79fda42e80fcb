//go:build integration

package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-bthome/internal/infrastructure/config"
)

// Integration tests against a real broker.
// These tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "bthome-integration-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
		MaxInflight: 8,
	}
}

func TestIntegration_Connect(t *testing.T) {
	client, err := Connect(integrationConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestIntegration_ConnectInvalidBroker(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.Port = 19999

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

// TestIntegration_RetainedRoundtrip publishes a retained value from a
// device-style connection and reads it back on a fresh subscriber.
func TestIntegration_RetainedRoundtrip(t *testing.T) {
	cfg := integrationConfig()
	ctx := context.Background()
	topic := "bthome-int/sensor-1/$state"

	device, err := Connect(cfg,
		WithClientID("bthome-int-device"),
		WithWill(topic, []byte("lost"), 1, true),
		WithoutStatus())
	if err != nil {
		t.Fatalf("Connect() device error = %v", err)
	}
	defer device.Close()

	if err := device.Publish(ctx, topic, []byte("ready"), 1, true); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	sub, err := Connect(cfg, WithClientID("bthome-int-sub"), WithoutStatus())
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer sub.Close()

	received := make(chan Message, 1)
	var once sync.Once
	err = sub.SubscribeMessages(topic, 1, func(m Message) error {
		once.Do(func() { received <- m })
		return nil
	})
	if err != nil {
		t.Fatalf("SubscribeMessages() error = %v", err)
	}

	select {
	case m := <-received:
		if string(m.Payload) != "ready" || !m.Retained {
			t.Errorf("received %+v, want retained ready", m)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for retained message")
	}

	// Clear the retained message.
	_ = device.Publish(ctx, topic, nil, 1, true)
}

func TestIntegration_LoggerSet(t *testing.T) {
	client, err := Connect(integrationConfig(), WithClientID("bthome-int-logger"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	client.SetLogger(&mockLogger{})
	if client.getLogger() == nil {
		t.Error("getLogger() = nil after SetLogger()")
	}
	client.SetLogger(nil)
	if client.getLogger() != nil {
		t.Error("getLogger() should be nil after SetLogger(nil)")
	}
}
