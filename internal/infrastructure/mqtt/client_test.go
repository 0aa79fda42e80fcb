package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/sync/semaphore"

	"github.com/nerrad567/gray-logic-bthome/internal/infrastructure/config"
)

// fakeToken implements pahomqtt.Token. It completes when finish is called.
type fakeToken struct {
	done chan struct{}
	err  error
	once sync.Once
}

func newFakeToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func completedToken(err error) *fakeToken {
	tok := newFakeToken()
	tok.finish(err)
	return tok
}

func (f *fakeToken) finish(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

func (f *fakeToken) Wait() bool {
	<-f.done
	return true
}

func (f *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-f.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (f *fakeToken) Done() <-chan struct{} { return f.done }
func (f *fakeToken) Error() error          { return f.err }

type fakePublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// fakePaho overrides the pahomqtt.Client methods the wrapper uses. The
// embedded interface is nil; calling anything else panics.
type fakePaho struct {
	pahomqtt.Client

	mu           sync.Mutex
	connected    bool
	published    []fakePublish
	handlers     map[string]pahomqtt.MessageHandler
	unsubscribed []string
	disconnected bool

	// nextToken, when set, is returned by the next Publish.
	nextToken  *fakeToken
	publishErr error
}

func newFakePaho() *fakePaho {
	return &fakePaho{connected: true, handlers: make(map[string]pahomqtt.MessageHandler)}
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, _ := payload.([]byte)
	if s, ok := payload.(string); ok {
		b = []byte(s)
	}
	f.published = append(f.published, fakePublish{Topic: topic, Payload: b, QoS: qos, Retained: retained})
	if tok := f.nextToken; tok != nil {
		f.nextToken = nil
		return tok
	}
	return completedToken(f.publishErr)
}

func (f *fakePaho) Subscribe(topic string, _ byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = callback
	return completedToken(nil)
}

func (f *fakePaho) Unsubscribe(topics ...string) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, topics...)
	return completedToken(nil)
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnected = true
}

func (f *fakePaho) deliver(topic string, payload []byte, retained bool) {
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	if h != nil {
		h(f, fakeMessage{topic: topic, payload: payload, retained: retained})
	}
}

func (f *fakePaho) getPublished() []fakePublish {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakePublish(nil), f.published...)
}

// fakeMessage implements the pahomqtt.Message methods the wrapper reads.
type fakeMessage struct {
	pahomqtt.Message
	topic    string
	payload  []byte
	retained bool
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }
func (m fakeMessage) Retained() bool  { return m.retained }
func (m fakeMessage) Qos() byte       { return 1 }

// mockLogger implements Logger interface for testing.
type mockLogger struct {
	errors []string
	warns  []string
	mu     sync.Mutex
}

func (l *mockLogger) Error(msg string, args ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *mockLogger) counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors), len(l.warns)
}

func newTestClient(fake *fakePaho, maxInflight int64) *Client {
	return &Client{
		client:        fake,
		cfg:           config.MQTTConfig{QoS: 1},
		clientID:      "test-client",
		connected:     true,
		inflight:      semaphore.NewWeighted(maxInflight),
		subscriptions: make(map[string]subscription),
	}
}

// =============================================================================
// Publish Tests
// =============================================================================

func TestPublish(t *testing.T) {
	fake := newFakePaho()
	client := newTestClient(fake, 4)

	err := client.Publish(context.Background(), "homie/sensor-1/$state", []byte("ready"), 1, true)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	pubs := fake.getPublished()
	if len(pubs) != 1 {
		t.Fatalf("published %d messages, want 1", len(pubs))
	}
	p := pubs[0]
	if p.Topic != "homie/sensor-1/$state" || string(p.Payload) != "ready" || p.QoS != 1 || !p.Retained {
		t.Errorf("published %+v", p)
	}
}

func TestPublish_Validation(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "a/b", []byte("x"), 3, ErrInvalidQoS},
		{"payload too large", "a/b", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakePaho()
			client := newTestClient(fake, 4)
			err := client.Publish(context.Background(), tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
			if n := len(fake.getPublished()); n != 0 {
				t.Errorf("published %d messages, want 0", n)
			}
		})
	}
}

func TestPublish_NotConnected(t *testing.T) {
	fake := newFakePaho()
	fake.connected = false
	client := newTestClient(fake, 4)

	err := client.Publish(context.Background(), "a/b", nil, 1, false)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

func TestPublish_TokenError(t *testing.T) {
	fake := newFakePaho()
	fake.publishErr = errors.New("broker rejected")
	client := newTestClient(fake, 4)

	err := client.Publish(context.Background(), "a/b", nil, 1, false)
	if !errors.Is(err, ErrPublishFailed) || !strings.Contains(err.Error(), "broker rejected") {
		t.Errorf("Publish() error = %v, want ErrPublishFailed wrapping token error", err)
	}
}

func TestPublish_ContextCancelledWhileWaiting(t *testing.T) {
	fake := newFakePaho()
	fake.nextToken = newFakeToken() // never completes
	client := newTestClient(fake, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := client.Publish(ctx, "a/b", nil, 1, false)
	if !errors.Is(err, ErrPublishFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Publish() error = %v, want ErrPublishFailed wrapping DeadlineExceeded", err)
	}
}

func TestPublish_InflightLimit(t *testing.T) {
	fake := newFakePaho()
	pending := newFakeToken()
	fake.nextToken = pending
	client := newTestClient(fake, 1)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- client.Publish(context.Background(), "a/1", nil, 1, false)
	}()

	// Wait until the first publish holds the only slot.
	deadline := time.Now().Add(time.Second)
	for len(fake.getPublished()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := client.Publish(ctx, "a/2", nil, 1, false)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second Publish() error = %v, want DeadlineExceeded while slot is held", err)
	}
	if n := len(fake.getPublished()); n != 1 {
		t.Errorf("published %d messages, want 1", n)
	}

	pending.finish(nil)
	if err := <-firstDone; err != nil {
		t.Errorf("first Publish() error = %v", err)
	}

	if err := client.Publish(context.Background(), "a/3", nil, 1, false); err != nil {
		t.Errorf("Publish() after release error = %v", err)
	}
}

// =============================================================================
// Subscribe Tests
// =============================================================================

func TestSubscribe(t *testing.T) {
	fake := newFakePaho()
	client := newTestClient(fake, 4)

	received := make(chan string, 1)
	err := client.Subscribe("zigbee2mqtt/bridge/devices", 1, func(topic string, payload []byte) error {
		received <- topic + "=" + string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription("zigbee2mqtt/bridge/devices") {
		t.Error("HasSubscription() = false")
	}

	fake.deliver("zigbee2mqtt/bridge/devices", []byte("[]"), true)
	if got := <-received; got != "zigbee2mqtt/bridge/devices=[]" {
		t.Errorf("handler got %q", got)
	}
}

func TestSubscribeMessages_Retained(t *testing.T) {
	fake := newFakePaho()
	client := newTestClient(fake, 4)

	var got Message
	err := client.SubscribeMessages("homie/#", 1, func(m Message) error {
		got = m
		return nil
	})
	if err != nil {
		t.Fatalf("SubscribeMessages() error = %v", err)
	}

	fake.deliver("homie/#", []byte("ready"), true)
	if !got.Retained || string(got.Payload) != "ready" || got.QoS != 1 {
		t.Errorf("message = %+v", got)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	handler := func(string, []byte) error { return nil }
	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		want    error
	}{
		{"empty topic", "", 1, handler, ErrInvalidTopic},
		{"invalid qos", "a/b", 3, handler, ErrInvalidQoS},
		{"nil handler", "a/b", 1, nil, ErrSubscribeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(newFakePaho(), 4)
			if err := client.Subscribe(tt.topic, tt.qos, tt.handler); !errors.Is(err, tt.want) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.want)
			}
			if client.SubscriptionCount() != 0 {
				t.Error("failed subscription should not be tracked")
			}
		})
	}
}

func TestSubscribe_Disconnected(t *testing.T) {
	fake := newFakePaho()
	fake.connected = false
	client := newTestClient(fake, 4)
	err := client.Subscribe("a/b", 1, func(string, []byte) error { return nil })
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
}

func TestUnsubscribe(t *testing.T) {
	fake := newFakePaho()
	client := newTestClient(fake, 4)
	handler := func(string, []byte) error { return nil }

	for _, topic := range []string{"a/1", "a/2"} {
		if err := client.Subscribe(topic, 1, handler); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}
	if err := client.Unsubscribe("a/1"); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription("a/1") {
		t.Error("HasSubscription(a/1) = true after Unsubscribe")
	}
	if client.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", client.SubscriptionCount())
	}
	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v, want ErrInvalidTopic", err)
	}
}

func TestHandlerErrorAndPanicAreLogged(t *testing.T) {
	fake := newFakePaho()
	client := newTestClient(fake, 4)
	logger := &mockLogger{}
	client.SetLogger(logger)

	_ = client.Subscribe("err", 1, func(string, []byte) error { return errors.New("bad payload") })
	_ = client.Subscribe("panic", 1, func(string, []byte) error { panic("boom") })

	fake.deliver("err", nil, false)
	fake.deliver("panic", nil, false)

	errs, warns := logger.counts()
	if errs != 1 {
		t.Errorf("logged %d errors, want 1 (panic)", errs)
	}
	if warns != 1 {
		t.Errorf("logged %d warnings, want 1 (handler error)", warns)
	}
}

func TestRestoreSubscriptions(t *testing.T) {
	fake := newFakePaho()
	client := newTestClient(fake, 4)
	_ = client.Subscribe("a/1", 1, func(string, []byte) error { return nil })

	fake.handlers = make(map[string]pahomqtt.MessageHandler)
	client.handleConnect()

	if _, ok := fake.handlers["a/1"]; !ok {
		t.Error("subscription not restored after reconnect")
	}
}

// =============================================================================
// Connection state Tests
// =============================================================================

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestClose_StatusMessages(t *testing.T) {
	fake := newFakePaho()
	client := newTestClient(fake, 4)
	client.status = true

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	pubs := fake.getPublished()
	if len(pubs) != 1 || pubs[0].Topic != "graylogic/status/test-client" {
		t.Fatalf("Close() published %+v, want one status message", pubs)
	}
	if !strings.Contains(string(pubs[0].Payload), "graceful_shutdown") {
		t.Errorf("status payload = %s", pubs[0].Payload)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}

func TestClose_WithoutStatus(t *testing.T) {
	fake := newFakePaho()
	client := newTestClient(fake, 4)

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if n := len(fake.getPublished()); n != 0 {
		t.Errorf("Close() published %d messages, want 0 for device connections", n)
	}
	if !fake.disconnected {
		t.Error("paho client not disconnected")
	}
}

func TestHealthCheck(t *testing.T) {
	fake := newFakePaho()
	client := newTestClient(fake, 4)

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() expected error for cancelled context")
	}

	client.handleDisconnect(errors.New("network down"))
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestConnectionCallbacks(t *testing.T) {
	client := newTestClient(newFakePaho(), 4)

	var connects, disconnects int
	client.SetOnConnect(func() { connects++ })
	client.SetOnDisconnect(func(error) { disconnects++ })

	client.handleConnect()
	client.handleDisconnect(errors.New("lost"))

	if connects != 1 || disconnects != 1 {
		t.Errorf("callbacks connect=%d disconnect=%d, want 1 and 1", connects, disconnects)
	}
}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "broker.local", Port: 1883, ClientID: "bridge"},
		Auth:   config.MQTTAuthConfig{Username: "user", Password: "pass"},
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     30,
		},
	}

	opts := buildClientOptions(cfg, "bthome-sensor-1")
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://broker.local:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "bthome-sensor-1" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "user" || opts.Password != "pass" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if opts.MaxReconnectInterval != 30*time.Second {
		t.Errorf("MaxReconnectInterval = %v", opts.MaxReconnectInterval)
	}
	if opts.Order {
		t.Error("Order = true, handlers that subscribe would stall the router")
	}

	cfg.Broker.TLS = true
	opts = buildClientOptions(cfg, "x")
	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config not set with minimum version")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := pahomqtt.NewClientOptions()
	configureLWT(opts, "bthome-bridge")

	if !opts.WillEnabled || opts.WillTopic != "graylogic/status/bthome-bridge" || !opts.WillRetained {
		t.Errorf("will = enabled %v topic %q retained %v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
	if !strings.Contains(string(opts.WillPayload), "unexpected_disconnect") {
		t.Errorf("will payload = %s", opts.WillPayload)
	}
}

func TestConnectOptions(t *testing.T) {
	co := connectOptions{clientID: "default", status: true}
	for _, opt := range []Option{
		WithClientID("bthome-sensor-1"),
		WithWill("homie/sensor-1/$state", []byte("lost"), 1, true),
		WithoutStatus(),
	} {
		opt(&co)
	}

	if co.clientID != "bthome-sensor-1" {
		t.Errorf("clientID = %q", co.clientID)
	}
	if co.status {
		t.Error("status should be disabled")
	}
	if co.will == nil || co.will.Topic != "homie/sensor-1/$state" || string(co.will.Payload) != "lost" || !co.will.Retained {
		t.Errorf("will = %+v", co.will)
	}
}

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{Topics{}.BridgeHealth("bthome"), "graylogic/health/bthome"},
		{Topics{}.BridgeStatus("bthome-bridge"), "graylogic/status/bthome-bridge"},
		{Topics{}.AllBridgeHealth(), "graylogic/health/+"},
		{Topics{}.AllBridgeStatus(), "graylogic/status/+"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
