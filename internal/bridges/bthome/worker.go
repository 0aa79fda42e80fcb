package bthome

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	codec "github.com/nerrad567/gray-logic-bthome/internal/bthome"
	"github.com/nerrad567/gray-logic-bthome/internal/homie"
	"github.com/nerrad567/gray-logic-bthome/internal/metrics"
)

// advertisement is the part of a scan result a worker needs.
type advertisement struct {
	data     []byte
	rssi     *int16
	received time.Time
}

// worker publishes the advertisements of one peripheral in arrival order.
// Only its own goroutine touches device.
type worker struct {
	bridge   *Bridge
	identity Identity
	queue    chan advertisement
	limiter  *rate.Limiter

	device *homie.Device
}

func (w *worker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case adv := <-w.queue:
			w.handle(ctx, adv)
		}
	}
}

func (w *worker) handle(ctx context.Context, adv advertisement) {
	b := w.bridge
	log := b.logger

	readings, err := codec.Decode(adv.data)
	if err != nil {
		b.errors.Add(1)
		b.metrics.Advertisement(Source, metrics.ResultDecodeError)
		log.Warn("discarding advertisement", "device_id", w.identity.ID, "error", err)
		return
	}
	b.metrics.Advertisement(Source, metrics.ResultDecoded)

	dev, err := w.ensureDevice(ctx)
	if err != nil {
		b.errors.Add(1)
		log.Error("registering device", "device_id", w.identity.ID, "error", err)
		return
	}

	for _, r := range readings {
		prop, value := codec.MapReading(r)
		if err := w.ensureProperty(ctx, dev, codec.NodeSensors, prop); err != nil {
			w.publishFailed(err, prop.ID)
			return
		}
		if err := dev.Send(ctx, codec.NodeSensors, prop.ID, value); err != nil {
			w.publishFailed(err, prop.ID)
			return
		}
		w.recordPublish(codec.NodeSensors, prop.ID, value, adv.received)
	}

	if adv.rssi != nil {
		if err := w.ensureLink(ctx, dev); err != nil {
			w.publishFailed(err, codec.PropertyRSSI)
			return
		}
		if err := dev.Send(ctx, codec.NodeLink, codec.PropertyRSSI, homie.Integer(*adv.rssi)); err != nil {
			w.publishFailed(err, codec.PropertyRSSI)
			return
		}
		b.published.Add(1)
		b.metrics.Reading(Source, codec.PropertyRSSI)
		if b.telemetry != nil {
			b.telemetry.WriteLink(w.identity.ID, Source, int(*adv.rssi), adv.received)
		}
	}
}

// ensureDevice registers the peripheral on first use, and again after its
// device was lost.
func (w *worker) ensureDevice(ctx context.Context) (*homie.Device, error) {
	if w.device != nil {
		switch w.device.State() {
		case homie.StateLost, homie.StateDisconnected:
		default:
			return w.device, nil
		}
	}

	b := w.bridge
	pending, err := homie.NewPendingDevice(w.identity.ID, w.identity.Name)
	if err != nil {
		return nil, err
	}
	if err := pending.AddNode(codec.SensorsNode()); err != nil {
		return nil, err
	}

	start := time.Now()
	dev, err := b.registry.Register(ctx, pending)
	b.metrics.Topology(metrics.OpRegister, err)
	if err != nil {
		return nil, err
	}
	b.metrics.BringUp(time.Since(start))

	if w.device == nil {
		b.devices.Add(1)
		b.metrics.SetDevices(Source, int(b.devices.Load()))
	}
	w.device = dev
	return dev, nil
}

func (w *worker) ensureProperty(ctx context.Context, dev *homie.Device, nodeID string, prop homie.PropertyDescriptor) error {
	if _, ok := dev.Property(nodeID, prop.ID); ok {
		return nil
	}
	_, err := dev.PropertyOrInsert(ctx, nodeID, prop)
	w.bridge.metrics.Topology(metrics.OpProperty, err)
	return err
}

func (w *worker) ensureLink(ctx context.Context, dev *homie.Device) error {
	if _, ok := dev.Node(codec.NodeLink); ok {
		return nil
	}
	_, err := dev.NodeOrInsert(ctx, codec.LinkNode())
	w.bridge.metrics.Topology(metrics.OpNode, err)
	return err
}

func (w *worker) recordPublish(nodeID, propertyID string, value homie.Value, ts time.Time) {
	b := w.bridge
	b.published.Add(1)
	b.metrics.Reading(Source, propertyID)
	if b.telemetry == nil {
		return
	}
	switch v := value.(type) {
	case homie.Float:
		b.telemetry.WriteReading(w.identity.ID, nodeID, propertyID, Source, float64(v), ts)
	case homie.Boolean:
		b.telemetry.WriteReading(w.identity.ID, nodeID, propertyID, Source, bool(v), ts)
	case homie.Integer:
		b.telemetry.WriteReading(w.identity.ID, nodeID, propertyID, Source, int64(v), ts)
	}
}

func (w *worker) publishFailed(err error, propertyID string) {
	b := w.bridge
	b.errors.Add(1)
	b.metrics.Advertisement(Source, metrics.ResultPublishFail)

	level := b.logger.Warn
	if errors.Is(err, homie.ErrBracketFailed) || errors.Is(err, homie.ErrDeviceLost) {
		level = b.logger.Error
	}
	level("publishing reading", "device_id", w.identity.ID, "property_id", propertyID, "error", err)
}
