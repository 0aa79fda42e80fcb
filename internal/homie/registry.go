package homie

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Logger is the logging interface used by the registry.
// Compatible with logging.Logger and slog.Logger.
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

// Options configures a Registry.
type Options struct {
	// Dialer opens one bus connection per device. Required.
	Dialer Dialer

	// BaseTopic is the root topic. Default: "homie".
	BaseTopic string

	// QoS is used for every publish. Default: 1.
	QoS byte

	// ClientIDPrefix is joined to the device id to build the MQTT client id.
	// Default: "homie".
	ClientIDPrefix string

	// Logger is optional.
	Logger Logger
}

// Registry owns every device published by this process.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - The device map lock is never held across network I/O; each device
//     carries its own lock for topology changes.
type Registry struct {
	dialer         Dialer
	topics         Topics
	qos            byte
	clientIDPrefix string
	logger         Logger

	devices map[string]*Device
	mu      sync.RWMutex

	// bringUps coalesces concurrent Register calls for the same id.
	bringUps singleflight.Group
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) (*Registry, error) {
	if opts.Dialer == nil {
		return nil, ErrNoDialer
	}
	base := opts.BaseTopic
	if base == "" {
		base = DefaultBaseTopic
	}
	qos := opts.QoS
	if qos == 0 {
		qos = DefaultQoS
	}
	prefix := opts.ClientIDPrefix
	if prefix == "" {
		prefix = "homie"
	}
	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	return &Registry{
		dialer:         opts.Dialer,
		topics:         Topics{Base: base},
		qos:            qos,
		clientIDPrefix: prefix,
		logger:         logger,
		devices:        make(map[string]*Device),
	}, nil
}

// Topics returns the topic builder for this registry's base topic.
func (r *Registry) Topics() Topics {
	return r.topics
}

// Register brings a staged device up on the bus and returns the live handle.
//
// Bring-up dials a dedicated connection with last will $state=lost, then
// publishes $homie, $state=init, $name, every staged node, $nodes and finally
// $state=ready. If any publish fails, or ctx ends first, $state=lost is
// published best-effort, the connection is closed, the device is not
// registered and the error wraps ErrBringUpFailed.
//
// Registering an id that is already live returns the existing device and
// ignores pending. An id whose device is lost or disconnected is brought up
// again from pending.
func (r *Registry) Register(ctx context.Context, pending *PendingDevice) (*Device, error) {
	if pending == nil {
		return nil, fmt.Errorf("%w: nil pending device", ErrInvalidID)
	}
	if d := r.live(pending.id); d != nil {
		return d, nil
	}

	v, err, _ := r.bringUps.Do(pending.id, func() (any, error) {
		if d := r.live(pending.id); d != nil {
			return d, nil
		}
		d, err := r.bringUp(ctx, pending)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.devices[d.id] = d
		r.mu.Unlock()
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Device), nil
}

// bringUp dials the device connection and advertises the staged topology.
func (r *Registry) bringUp(ctx context.Context, pending *PendingDevice) (*Device, error) {
	will := Will{
		Topic:    r.topics.Device(pending.id, AttrState),
		Payload:  []byte(StateLost),
		QoS:      r.qos,
		Retained: true,
	}
	bus, err := r.dialer.Dial(ctx, r.clientIDPrefix+"-"+pending.id, will)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: dial: %w", ErrBringUpFailed, pending.id, err)
	}

	d := &Device{
		id:     pending.id,
		name:   pending.name,
		state:  StateInit,
		nodes:  pending.nodes(),
		pub:    NewPublisher(bus, r.topics, r.qos, pending.id),
		logger: r.logger,
	}

	if err := d.advertise(ctx); err != nil {
		// A clean close suppresses the will, so $state=lost has to be published
		// by hand or the retained state stays at init.
		cleanup := context.WithoutCancel(ctx)
		if stateErr := d.pub.PublishState(cleanup, StateLost); stateErr != nil {
			r.logger.Debug("publishing lost state after failed bring-up", "device_id", d.id, "error", stateErr)
		}
		if closeErr := bus.Close(); closeErr != nil {
			r.logger.Warn("closing bus after failed bring-up", "device_id", d.id, "error", closeErr)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrBringUpFailed, d.id, err)
	}

	r.logger.Info("device ready", "device_id", d.id, "nodes", len(d.nodes))
	return d, nil
}

// live returns the registered device if it can still publish.
func (r *Registry) live(id string) *Device {
	r.mu.RLock()
	d, ok := r.devices[id]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	switch d.State() {
	case StateLost, StateDisconnected:
		return nil
	}
	return d
}

// Device returns the registered device with the given id, in any state.
func (r *Registry) Device(id string) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	return d, ok
}

// Devices returns snapshots of every registered device, sorted by id.
func (r *Registry) Devices() []DeviceDescriptor {
	r.mu.RLock()
	devices := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d)
	}
	r.mu.RUnlock()

	out := make([]DeviceDescriptor, len(devices))
	for i, d := range devices {
		out[i] = d.Snapshot()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Close disconnects every registered device.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.RLock()
	devices := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d)
	}
	r.mu.RUnlock()

	var errs []error
	for _, d := range devices {
		if err := d.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("device %s: %w", d.id, err))
		}
	}
	return errors.Join(errs...)
}

// PendingDevice is a device staged for bring-up. It is not published until
// it is passed to Registry.Register.
type PendingDevice struct {
	id     string
	name   string
	staged []NodeDescriptor
}

// NewPendingDevice stages a device with the given id and display name.
func NewPendingDevice(id, name string) (*PendingDevice, error) {
	if err := validateID("device", id); err != nil {
		return nil, err
	}
	return &PendingDevice{id: id, name: name}, nil
}

// ID returns the staged device id.
func (p *PendingDevice) ID() string {
	return p.id
}

// AddNode stages a node. Node ids must be unique within the device.
func (p *PendingDevice) AddNode(node NodeDescriptor) error {
	if err := validateNode(node); err != nil {
		return err
	}
	for _, n := range p.staged {
		if n.ID == node.ID {
			return fmt.Errorf("%w: device %q node %q", ErrDuplicateID, p.id, node.ID)
		}
	}
	p.staged = append(p.staged, node.DeepCopy())
	return nil
}

// nodes returns a copy of the staged nodes.
func (p *PendingDevice) nodes() []NodeDescriptor {
	out := make([]NodeDescriptor, len(p.staged))
	for i, n := range p.staged {
		out[i] = n.DeepCopy()
	}
	return out
}
