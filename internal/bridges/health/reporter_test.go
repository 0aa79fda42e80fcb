package health

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type mockPublisher struct {
	mu        sync.Mutex
	messages  []published
	connected bool
	err       error
}

func (m *mockPublisher) Publish(_ context.Context, topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, published{topic, payload, qos, retained})
	return nil
}

func (m *mockPublisher) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockPublisher) last(t *testing.T) Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		t.Fatal("no health message published")
	}
	var msg Message
	if err := json.Unmarshal(m.messages[len(m.messages)-1].payload, &msg); err != nil {
		t.Fatalf("unmarshal health message: %v", err)
	}
	return msg
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

type staticSource Stats

func (s staticSource) Stats() Stats { return Stats(s) }

type mockLogger struct {
	mu     sync.Mutex
	errors int
}

func (l *mockLogger) Error(string, ...any) {
	l.mu.Lock()
	l.errors++
	l.mu.Unlock()
}

// =============================================================================
// Status determination
// =============================================================================

func TestPublishNow(t *testing.T) {
	tests := []struct {
		name       string
		connected  bool
		running    bool
		wantStatus Status
		wantReason string
	}{
		{"healthy", true, true, StatusHealthy, ""},
		{"mqtt down", false, true, StatusDegraded, "MQTT disconnected"},
		{"source stopped", true, false, StatusDegraded, "source not running"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{connected: tt.connected}
			r := NewReporter(Config{
				BridgeID:  "bthome",
				Version:   "1.2.3",
				Publisher: pub,
				Source:    staticSource{Running: tt.running, Received: 10, Published: 8, Errors: 2, Devices: 3},
			})

			if err := r.PublishNow(context.Background()); err != nil {
				t.Fatalf("PublishNow() error = %v", err)
			}

			msg := pub.last(t)
			if msg.Status != tt.wantStatus || msg.Reason != tt.wantReason {
				t.Errorf("status = %q (%q), want %q (%q)", msg.Status, msg.Reason, tt.wantStatus, tt.wantReason)
			}
			if msg.Bridge != "bthome" || msg.Version != "1.2.3" || msg.DevicesManaged != 3 {
				t.Errorf("message = %+v", msg)
			}
			if msg.Statistics == nil || msg.Statistics.MessagesReceived != 10 || msg.Statistics.Errors != 2 {
				t.Errorf("statistics = %+v", msg.Statistics)
			}
		})
	}
}

func TestPublish_TopicAndRetain(t *testing.T) {
	pub := &mockPublisher{connected: true}
	r := NewReporter(Config{BridgeID: "zigbee2mqtt", Publisher: pub})

	if err := r.PublishStarting(context.Background()); err != nil {
		t.Fatalf("PublishStarting() error = %v", err)
	}

	pub.mu.Lock()
	m := pub.messages[0]
	pub.mu.Unlock()
	if m.topic != "graylogic/health/zigbee2mqtt" || !m.retained || m.qos != 1 {
		t.Errorf("published to %q qos %d retained %v", m.topic, m.qos, m.retained)
	}
	if msg := pub.last(t); msg.Status != StatusStarting {
		t.Errorf("status = %q, want starting", msg.Status)
	}
}

func TestPublish_NoPublisher(t *testing.T) {
	r := NewReporter(Config{BridgeID: "bthome"})
	if err := r.PublishNow(context.Background()); err != nil {
		t.Errorf("PublishNow() without publisher error = %v, want nil", err)
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestStartStop(t *testing.T) {
	pub := &mockPublisher{connected: true}
	r := NewReporter(Config{
		BridgeID:  "bthome",
		Interval:  10 * time.Millisecond,
		Publisher: pub,
		Source:    staticSource{Running: true},
	})

	r.Start(context.Background())

	deadline := time.Now().Add(time.Second)
	for pub.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if pub.count() < 2 {
		t.Fatalf("published %d messages, want at least 2", pub.count())
	}

	r.Stop()
	r.Stop() // second call is a no-op

	if msg := pub.last(t); msg.Status != StatusStopping {
		t.Errorf("final status = %q, want stopping", msg.Status)
	}
}

func TestReportLoop_LogsErrors(t *testing.T) {
	pub := &mockPublisher{connected: true, err: errors.New("broker gone")}
	logger := &mockLogger{}
	r := NewReporter(Config{BridgeID: "bthome", Interval: time.Hour, Publisher: pub, Logger: logger})

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	deadline := time.Now().Add(time.Second)
	for {
		logger.mu.Lock()
		n := logger.errors
		logger.mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	r.Stop()

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if logger.errors == 0 {
		t.Error("expected initial publish failure to be logged")
	}
}

func TestNewMessage(t *testing.T) {
	start := time.Now().Add(-90 * time.Second)
	msg := NewMessage("bthome", "dev", StatusHealthy, Stats{Running: false, Devices: 1}, start)

	if msg.UptimeSeconds < 89 || msg.UptimeSeconds > 91 {
		t.Errorf("UptimeSeconds = %d, want ~90", msg.UptimeSeconds)
	}
	if msg.Source == nil || msg.Source.Status != "stopped" {
		t.Errorf("Source = %+v, want stopped", msg.Source)
	}
}
