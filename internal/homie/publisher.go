package homie

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// DefaultQoS is the QoS used for every publish unless Options.QoS says otherwise.
const DefaultQoS byte = 1

// Bus is one MQTT connection owned by a single device.
//
// *mqtt.Client satisfies this interface.
type Bus interface {
	// Publish sends payload to topic and waits for the broker to accept it,
	// or for ctx to end.
	Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error

	// Close disconnects cleanly, so the broker does not fire the last will.
	Close() error
}

// Will is the last-will message registered when a bus connection is opened.
type Will struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// Dialer opens a bus connection with a last will registered at connect time.
type Dialer interface {
	Dial(ctx context.Context, clientID string, will Will) (Bus, error)
}

// Publisher encodes descriptors and values for one device and publishes them
// with the right retain flag. Metadata is always retained; values follow the
// owning property's Retained flag.
type Publisher struct {
	bus      Bus
	topics   Topics
	qos      byte
	deviceID string
}

// NewPublisher returns a publisher for one device on bus.
func NewPublisher(bus Bus, topics Topics, qos byte, deviceID string) *Publisher {
	return &Publisher{
		bus:      bus,
		topics:   topics,
		qos:      qos,
		deviceID: deviceID,
	}
}

// PublishDeviceAttr publishes a retained device attribute such as $name.
func (p *Publisher) PublishDeviceAttr(ctx context.Context, attr, payload string) error {
	return p.publish(ctx, p.topics.Device(p.deviceID, attr), []byte(payload), true)
}

// PublishState publishes $state.
func (p *Publisher) PublishState(ctx context.Context, state DeviceState) error {
	return p.PublishDeviceAttr(ctx, AttrState, string(state))
}

// PublishNodeList publishes $nodes.
func (p *Publisher) PublishNodeList(ctx context.Context, ids []string) error {
	return p.PublishDeviceAttr(ctx, AttrNodes, strings.Join(ids, ","))
}

// PublishPropertyList publishes $properties for one node.
func (p *Publisher) PublishPropertyList(ctx context.Context, nodeID string, ids []string) error {
	return p.publish(ctx, p.topics.Node(p.deviceID, nodeID, AttrProperties), []byte(strings.Join(ids, ",")), true)
}

// AdvertiseNode publishes a node's $name, $type and $properties, followed by
// every property's attributes.
func (p *Publisher) AdvertiseNode(ctx context.Context, node NodeDescriptor) error {
	if err := p.publish(ctx, p.topics.Node(p.deviceID, node.ID, AttrName), []byte(node.Name), true); err != nil {
		return err
	}
	if err := p.publish(ctx, p.topics.Node(p.deviceID, node.ID, AttrType), []byte(node.Type), true); err != nil {
		return err
	}
	if err := p.PublishPropertyList(ctx, node.ID, node.PropertyIDs()); err != nil {
		return err
	}
	for _, prop := range node.Properties {
		if err := p.AdvertiseProperty(ctx, node.ID, prop); err != nil {
			return err
		}
	}
	return nil
}

type attribute struct {
	name  string
	value string
}

// AdvertiseProperty publishes a property's attributes. $format and $unit are
// only published when set.
func (p *Publisher) AdvertiseProperty(ctx context.Context, nodeID string, prop PropertyDescriptor) error {
	attrs := []attribute{
		{AttrName, prop.Name},
		{AttrDatatype, string(prop.Datatype)},
		{AttrSettable, strconv.FormatBool(prop.Settable)},
		{AttrRetained, strconv.FormatBool(prop.Retained)},
	}
	if prop.Format != nil {
		attrs = append(attrs, attribute{AttrFormat, EncodeFormat(prop.Format)})
	}
	if prop.Unit != UnitNone {
		attrs = append(attrs, attribute{AttrUnit, string(prop.Unit)})
	}

	for _, a := range attrs {
		topic := p.topics.Property(p.deviceID, nodeID, prop.ID, a.name)
		if err := p.publish(ctx, topic, []byte(a.value), true); err != nil {
			return err
		}
	}
	return nil
}

// PublishValue encodes v and publishes it on the property's value topic.
func (p *Publisher) PublishValue(ctx context.Context, nodeID string, prop PropertyDescriptor, v Value) error {
	payload, err := EncodeValue(v)
	if err != nil {
		return fmt.Errorf("property %s/%s: %w", nodeID, prop.ID, err)
	}
	return p.publish(ctx, p.topics.Value(p.deviceID, nodeID, prop.ID), payload, prop.Retained)
}

// Close closes the underlying bus.
func (p *Publisher) Close() error {
	return p.bus.Close()
}

func (p *Publisher) publish(ctx context.Context, topic string, payload []byte, retained bool) error {
	if err := p.bus.Publish(ctx, topic, payload, p.qos, retained); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}
