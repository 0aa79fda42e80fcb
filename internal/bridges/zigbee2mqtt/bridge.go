package zigbee2mqtt

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-bthome/internal/bridges/health"
	"github.com/nerrad567/gray-logic-bthome/internal/homie"
	"github.com/nerrad567/gray-logic-bthome/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-bthome/internal/metrics"
)

// Source labels metrics, telemetry and health for this bridge.
const Source = "zigbee2mqtt"

// DefaultBaseTopic is the zigbee2mqtt default base topic.
const DefaultBaseTopic = "zigbee2mqtt"

const subscribeQoS = 1

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Subscriber is the MQTT side of the bridge. Implemented by *mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// DeviceRegistry brings devices up on the Homie bus.
// Implemented by *homie.Registry.
type DeviceRegistry interface {
	Register(ctx context.Context, pending *homie.PendingDevice) (*homie.Device, error)
}

// Telemetry records published readings. Implemented by *influxdb.Client.
type Telemetry interface {
	WriteReading(deviceID, nodeID, propertyID, source string, value any, ts time.Time)
	Flush()
}

// Options holds everything needed to create a bridge.
type Options struct {
	// BaseTopic is the zigbee2mqtt base topic. Default: "zigbee2mqtt".
	BaseTopic  string
	Subscriber Subscriber
	Registry   DeviceRegistry

	// Metrics, Telemetry and Logger are optional.
	Metrics   *metrics.Metrics
	Telemetry Telemetry
	Logger    Logger
}

// Bridge follows zigbee2mqtt and republishes its devices.
//
// Thread Safety: All methods are safe for concurrent use. MQTT handlers may
// run concurrently; device state is guarded per device.
type Bridge struct {
	baseTopic string
	sub       Subscriber
	registry  DeviceRegistry
	metrics   *metrics.Metrics
	telemetry Telemetry
	logger    Logger

	ctx context.Context

	// devices is keyed by Homie device id.
	devices map[string]*tracked
	listing []ListedDevice
	mu      sync.Mutex

	running   atomic.Bool
	received  atomic.Uint64
	published atomic.Uint64
	errors    atomic.Uint64
}

// ListedDevice is one entry of the last device list, as the bridge handled it.
type ListedDevice struct {
	// Index is the position in the list.
	Index        int
	IEEEAddress  string
	FriendlyName string
	ModelID      string
	Manufacturer string
	Type         DeviceType

	// HomieID is set once the device is published.
	HomieID string
	Skipped []string

	// Error says why the entry was rejected, skipped or failed to publish.
	Error string
}

// tracked is one mapped device and its live handle.
type tracked struct {
	mu      sync.Mutex
	mapping Mapping
	device  *homie.Device

	// topic is the state topic currently subscribed, empty until the
	// device has been published.
	topic string
}

// New creates a bridge. Call Start to subscribe.
func New(opts Options) (*Bridge, error) {
	if opts.Subscriber == nil {
		return nil, ErrNoSubscriber
	}
	if opts.Registry == nil {
		return nil, ErrNoRegistry
	}
	base := opts.BaseTopic
	if base == "" {
		base = DefaultBaseTopic
	}
	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}
	return &Bridge{
		baseTopic: base,
		sub:       opts.Subscriber,
		registry:  opts.Registry,
		metrics:   opts.Metrics,
		telemetry: opts.Telemetry,
		logger:    logger,
		ctx:       context.Background(),
		devices:   make(map[string]*tracked),
	}, nil
}

// DevicesTopic is the retained device list topic.
func (b *Bridge) DevicesTopic() string {
	return b.baseTopic + "/bridge/devices"
}

// Start subscribes to the device list. Handlers publish with ctx, so
// cancelling it aborts in-flight publishes.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	if err := b.sub.Subscribe(b.DevicesTopic(), subscribeQoS, func(_ string, payload []byte) error {
		return b.HandleDevices(b.context(), payload)
	}); err != nil {
		return err
	}
	b.running.Store(true)
	b.logger.Info("zigbee2mqtt bridge started", "topic", b.DevicesTopic())
	return nil
}

// Stop unsubscribes from every topic and flushes telemetry. Registered
// devices stay live; the registry disconnects them on shutdown.
func (b *Bridge) Stop() {
	b.running.Store(false)

	topics := []string{b.DevicesTopic()}
	b.mu.Lock()
	for _, t := range b.devices {
		t.mu.Lock()
		if t.topic != "" {
			topics = append(topics, t.topic)
		}
		t.mu.Unlock()
	}
	b.mu.Unlock()

	for _, topic := range topics {
		if err := b.sub.Unsubscribe(topic); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
			b.logger.Warn("unsubscribing", "topic", topic, "error", err)
		}
	}
	if b.telemetry != nil {
		b.telemetry.Flush()
	}
}

// Stats implements health.StatsSource.
func (b *Bridge) Stats() health.Stats {
	b.mu.Lock()
	n := len(b.devices)
	b.mu.Unlock()
	return health.Stats{
		Running:   b.running.Load(),
		Received:  b.received.Load(),
		Published: b.published.Load(),
		Errors:    b.errors.Load(),
		Devices:   n,
	}
}

func (b *Bridge) context() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx
}

// Listing returns the last device list in list order, valid and rejected
// entries alike.
func (b *Bridge) Listing() []ListedDevice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ListedDevice, len(b.listing))
	for i, d := range b.listing {
		d.Skipped = append([]string(nil), d.Skipped...)
		out[i] = d
	}
	return out
}

// HandleDevices processes one bridge/devices payload.
func (b *Bridge) HandleDevices(ctx context.Context, payload []byte) error {
	devices, invalid, err := ParseDevices(payload)
	if err != nil {
		b.errors.Add(1)
		return err
	}

	listing := make([]ListedDevice, 0, len(devices)+len(invalid))
	for _, inv := range invalid {
		b.errors.Add(1)
		b.logger.Warn("skipping invalid zigbee2mqtt device", "index", inv.Index, "error", inv.Err)
		listing = append(listing, ListedDevice{Index: inv.Index, Error: inv.Err.Error()})
	}

	for n, info := range devices {
		entry := ListedDevice{
			Index:        indexOf(n, invalid),
			IEEEAddress:  info.IEEEAddress,
			FriendlyName: info.FriendlyName,
			ModelID:      info.ModelID,
			Manufacturer: info.Manufacturer,
			Type:         info.Type,
		}
		mapping, err := MapDevice(info, b.baseTopic)
		if err != nil {
			b.logger.Debug("skipping zigbee2mqtt device", "ieee_address", info.IEEEAddress, "reason", err)
			entry.Error = err.Error()
			listing = append(listing, entry)
			continue
		}
		entry.Skipped = mapping.Skipped
		for _, s := range mapping.Skipped {
			b.logger.Debug("unsupported expose", "device_id", mapping.ID, "expose", s)
		}
		if err := b.track(ctx, mapping); err != nil {
			b.errors.Add(1)
			b.logger.Error("publishing zigbee2mqtt device", "device_id", mapping.ID, "error", err)
			entry.Error = err.Error()
		} else {
			entry.HomieID = mapping.ID
		}
		listing = append(listing, entry)
	}
	slices.SortFunc(listing, func(x, y ListedDevice) int { return x.Index - y.Index })

	b.mu.Lock()
	b.listing = listing
	b.mu.Unlock()

	b.metrics.SetDevices(Source, b.Stats().Devices)
	return nil
}

// indexOf maps the n-th valid device back to its position in the list.
// invalid is in list order.
func indexOf(n int, invalid []InvalidDevice) int {
	i := n
	for _, inv := range invalid {
		if inv.Index > i {
			break
		}
		i++
	}
	return i
}

// track registers a new device or grows an existing one.
func (b *Bridge) track(ctx context.Context, mapping Mapping) error {
	b.mu.Lock()
	t, known := b.devices[mapping.ID]
	if !known {
		t = &tracked{}
		b.devices[mapping.ID] = t
	}
	b.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	if known {
		t.mapping = merge(t.mapping, mapping)
	} else {
		t.mapping = mapping
	}

	if err := b.ensureTopology(ctx, t); err != nil {
		return err
	}

	if t.topic == t.mapping.StateTopic {
		return nil
	}
	if t.topic != "" {
		if err := b.sub.Unsubscribe(t.topic); err != nil {
			b.logger.Warn("unsubscribing renamed device", "topic", t.topic, "error", err)
		}
		t.topic = ""
	}
	id := mapping.ID
	if err := b.sub.Subscribe(t.mapping.StateTopic, subscribeQoS, func(_ string, payload []byte) error {
		return b.HandleState(b.context(), id, payload)
	}); err != nil {
		return err
	}
	t.topic = t.mapping.StateTopic
	return nil
}

// ensureTopology registers the device if needed and inserts any node or
// property the mapping has gained. Caller holds t.mu.
func (b *Bridge) ensureTopology(ctx context.Context, t *tracked) error {
	if t.device == nil || !usable(t.device) {
		pending, err := homie.NewPendingDevice(t.mapping.ID, t.mapping.Name)
		if err != nil {
			return err
		}
		for _, n := range t.mapping.Nodes {
			if err := pending.AddNode(n); err != nil {
				return err
			}
		}
		start := time.Now()
		dev, err := b.registry.Register(ctx, pending)
		b.metrics.Topology(metrics.OpRegister, err)
		if err != nil {
			return err
		}
		b.metrics.BringUp(time.Since(start))
		t.device = dev
	}

	for _, n := range t.mapping.Nodes {
		existing, ok := t.device.Node(n.ID)
		if !ok {
			_, err := t.device.NodeOrInsert(ctx, n)
			b.metrics.Topology(metrics.OpNode, err)
			if err != nil {
				return err
			}
			continue
		}
		for _, p := range n.Properties {
			if _, ok := existing.Property(p.ID); ok {
				continue
			}
			_, err := t.device.PropertyOrInsert(ctx, n.ID, p)
			b.metrics.Topology(metrics.OpProperty, err)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// HandleState forwards one state message of a tracked device.
func (b *Bridge) HandleState(ctx context.Context, deviceID string, payload []byte) error {
	b.received.Add(1)

	b.mu.Lock()
	t, ok := b.devices[deviceID]
	b.mu.Unlock()
	if !ok {
		b.metrics.Advertisement(Source, metrics.ResultSkipped)
		return nil
	}

	state, err := DecodeState(payload)
	if err != nil {
		b.errors.Add(1)
		b.metrics.Advertisement(Source, metrics.ResultDecodeError)
		b.logger.Warn("discarding zigbee2mqtt state", "device_id", deviceID, "error", err)
		return nil
	}
	b.metrics.Advertisement(Source, metrics.ResultDecoded)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.device == nil || !usable(t.device) {
		if err := b.ensureTopology(ctx, t); err != nil {
			b.errors.Add(1)
			return err
		}
	}

	now := time.Now()
	for field, raw := range state {
		binding, ok := t.mapping.Bindings[field]
		if !ok {
			continue
		}
		value, ok := binding.Convert(raw)
		if !ok {
			b.logger.Debug("state field does not fit property", "device_id", deviceID, "field", field)
			continue
		}
		if err := t.device.Send(ctx, binding.NodeID, binding.Property.ID, value); err != nil {
			b.errors.Add(1)
			b.metrics.Advertisement(Source, metrics.ResultPublishFail)
			return err
		}
		b.published.Add(1)
		b.metrics.Reading(Source, binding.Property.ID)
		b.record(deviceID, binding, value, now)
	}
	return nil
}

func (b *Bridge) record(deviceID string, binding Binding, value homie.Value, ts time.Time) {
	if b.telemetry == nil {
		return
	}
	var v any
	switch value := value.(type) {
	case homie.Integer:
		v = int64(value)
	case homie.Float:
		v = float64(value)
	case homie.Boolean:
		v = bool(value)
	default:
		return
	}
	b.telemetry.WriteReading(deviceID, binding.NodeID, binding.Property.ID, Source, v, ts)
}

// merge adds the nodes, properties and bindings of next to prev. Nothing is
// ever removed, and an existing property keeps its descriptor.
func merge(prev, next Mapping) Mapping {
	out := prev
	out.Name = next.Name
	out.StateTopic = next.StateTopic
	out.Skipped = next.Skipped

	nodes := make([]homie.NodeDescriptor, len(prev.Nodes))
	for i, n := range prev.Nodes {
		nodes[i] = n.DeepCopy()
	}
	bindings := make(map[string]Binding, len(prev.Bindings)+len(next.Bindings))
	for k, v := range prev.Bindings {
		bindings[k] = v
	}

	for _, n := range next.Nodes {
		idx := -1
		for i := range nodes {
			if nodes[i].ID == n.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			nodes = append(nodes, n.DeepCopy())
			continue
		}
		for _, p := range n.Properties {
			if _, ok := nodes[idx].Property(p.ID); !ok {
				nodes[idx].Properties = append(nodes[idx].Properties, p)
			}
		}
	}
	for field, bnd := range next.Bindings {
		if _, ok := bindings[field]; !ok {
			bindings[field] = bnd
		}
	}

	out.Nodes = nodes
	out.Bindings = bindings
	return out
}

func usable(d *homie.Device) bool {
	switch d.State() {
	case homie.StateLost, homie.StateDisconnected:
		return false
	}
	return true
}
