package homie

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var errMockPublish = errors.New("mock publish failure")

type mockPublish struct {
	Topic    string
	Payload  string
	QoS      byte
	Retained bool
}

// MockBus implements Bus for testing.
type MockBus struct {
	mu        sync.Mutex
	published []mockPublish
	closed    bool

	// failOn makes Publish fail for matching topics once armed.
	failOn func(topic string) bool
}

func (m *MockBus) Publish(_ context.Context, topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("bus closed")
	}
	if m.failOn != nil && m.failOn(topic) {
		return errMockPublish
	}
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  string(payload),
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockBus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockBus) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockPublish, len(m.published))
	copy(out, m.published)
	return out
}

func (m *MockBus) ClearPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
}

func (m *MockBus) FailOn(fn func(topic string) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn = fn
}

func (m *MockBus) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockDialer implements Dialer for testing. Each Dial gets a fresh MockBus.
type MockDialer struct {
	mu      sync.Mutex
	buses   map[string]*MockBus
	wills   map[string]Will
	dials   int
	dialErr error

	// failOn is installed on every bus this dialer creates.
	failOn func(topic string) bool

	// gate, when set, blocks Dial until it is closed.
	gate chan struct{}
}

func NewMockDialer() *MockDialer {
	return &MockDialer{
		buses: make(map[string]*MockBus),
		wills: make(map[string]Will),
	}
}

func (m *MockDialer) Dial(_ context.Context, clientID string, will Will) (Bus, error) {
	m.mu.Lock()
	gate := m.gate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.dials++
	if m.dialErr != nil {
		return nil, m.dialErr
	}
	bus := &MockBus{failOn: m.failOn}
	m.buses[clientID] = bus
	m.wills[clientID] = will
	return bus, nil
}

func (m *MockDialer) Bus(clientID string) *MockBus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buses[clientID]
}

func (m *MockDialer) Will(clientID string) (Will, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wills[clientID]
	return w, ok
}

func (m *MockDialer) Dials() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dials
}

// publishedTopics flattens a publish log into "topic=payload" lines.
func publishedTopics(pubs []mockPublish) []string {
	out := make([]string, len(pubs))
	for i, p := range pubs {
		out[i] = p.Topic + "=" + p.Payload
	}
	return out
}

func topicSuffix(suffix string) func(string) bool {
	return func(topic string) bool { return strings.HasSuffix(topic, suffix) }
}

func sensorNode() NodeDescriptor {
	return NodeDescriptor{
		ID:   "sensors",
		Name: "Sensors",
		Type: "bthome",
		Properties: []PropertyDescriptor{
			{
				ID:       "temperature",
				Name:     "Temperature",
				Datatype: DatatypeFloat,
				Retained: true,
				Unit:     UnitDegreeCelsius,
			},
		},
	}
}

// dialerFunc adapts a function to Dialer.
type dialerFunc func(ctx context.Context, clientID string, will Will) (Bus, error)

func (f dialerFunc) Dial(ctx context.Context, clientID string, will Will) (Bus, error) {
	return f(ctx, clientID, will)
}

// cancellingBus cancels the caller's context once a topic ending in after has
// been published, and fails publishes whose context is done.
type cancellingBus struct {
	*MockBus
	cancel context.CancelFunc
	after  string
}

func (b *cancellingBus) Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.MockBus.Publish(ctx, topic, payload, qos, retained); err != nil {
		return err
	}
	if strings.HasSuffix(topic, b.after) {
		b.cancel()
	}
	return nil
}

// lastState returns the payload of the last publish to topic, or "".
func lastState(pubs []mockPublish, topic string) string {
	state := ""
	for _, p := range pubs {
		if p.Topic == topic {
			state = p.Payload
		}
	}
	return state
}
