package homie

import (
	"context"
	"fmt"
	"sync"
)

// Device is a live device owned by a Registry.
//
// Lookups and Send take the device's read lock. NodeOrInsert and
// PropertyOrInsert take the write lock and hold it until the whole
// init/ready bracket has been published, so brackets on one device never
// interleave. Callers only ever receive copies of the descriptors.
type Device struct {
	id     string
	name   string
	pub    *Publisher
	logger Logger

	mu    sync.RWMutex
	state DeviceState
	nodes []NodeDescriptor
}

// ID returns the device id.
func (d *Device) ID() string {
	return d.id
}

// Name returns the device display name.
func (d *Device) Name() string {
	return d.name
}

// State returns the current lifecycle state.
func (d *Device) State() DeviceState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Snapshot returns a copy of the device descriptor.
func (d *Device) Snapshot() DeviceDescriptor {
	d.mu.RLock()
	defer d.mu.RUnlock()

	nodes := make([]NodeDescriptor, len(d.nodes))
	for i, n := range d.nodes {
		nodes[i] = n.DeepCopy()
	}
	return DeviceDescriptor{
		ID:    d.id,
		Name:  d.name,
		State: d.state,
		Nodes: nodes,
	}
}

// Node returns a copy of the node with the given id.
func (d *Device) Node(id string) (NodeDescriptor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i := d.nodeIndex(id); i >= 0 {
		return d.nodes[i].DeepCopy(), true
	}
	return NodeDescriptor{}, false
}

// Property returns the property descriptor at nodeID/propertyID.
func (d *Device) Property(nodeID, propertyID string) (PropertyDescriptor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i := d.nodeIndex(nodeID)
	if i < 0 {
		return PropertyDescriptor{}, false
	}
	return d.nodes[i].Property(propertyID)
}

// Send publishes a value for an existing property, retained according to the
// property's Retained flag. No state transition happens.
func (d *Device) Send(ctx context.Context, nodeID, propertyID string, v Value) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := d.usable(); err != nil {
		return err
	}
	i := d.nodeIndex(nodeID)
	if i < 0 {
		return fmt.Errorf("%w: %s/%s", ErrUnknownNode, d.id, nodeID)
	}
	prop, ok := d.nodes[i].Property(propertyID)
	if !ok {
		return fmt.Errorf("%w: %s/%s/%s", ErrUnknownProperty, d.id, nodeID, propertyID)
	}
	return d.pub.PublishValue(ctx, nodeID, prop, v)
}

// NodeOrInsert returns the node with node.ID, inserting and advertising it if
// it does not exist yet.
//
// Insertion runs the init/ready bracket: $state=init, the node's attributes
// and properties, $nodes, $state=ready. If the node already exists nothing is
// published and the existing descriptor is returned.
func (d *Device) NodeOrInsert(ctx context.Context, node NodeDescriptor) (NodeDescriptor, error) {
	if err := validateNode(node); err != nil {
		return NodeDescriptor{}, err
	}
	if existing, ok, err := d.lookupNode(node.ID); err != nil || ok {
		return existing, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.usable(); err != nil {
		return NodeDescriptor{}, err
	}
	if i := d.nodeIndex(node.ID); i >= 0 {
		return d.nodes[i].DeepCopy(), nil
	}

	node = node.DeepCopy()
	d.nodes = append(d.nodes, node)

	err := d.bracket(ctx, func(bctx context.Context) error {
		if err := d.pub.AdvertiseNode(bctx, node); err != nil {
			return err
		}
		return d.pub.PublishNodeList(bctx, d.nodeIDs())
	})
	if err != nil {
		return NodeDescriptor{}, fmt.Errorf("%w: %s: insert node %q: %w", ErrBracketFailed, d.id, node.ID, err)
	}

	d.logger.Debug("node inserted", "device_id", d.id, "node_id", node.ID)
	return node.DeepCopy(), nil
}

// PropertyOrInsert returns the property prop.ID on nodeID, inserting and
// advertising it if it does not exist yet.
//
// Insertion runs the init/ready bracket: $state=init, the property's
// attributes, the node's $properties, $state=ready. If the property already
// exists nothing is published and the existing descriptor is returned.
func (d *Device) PropertyOrInsert(ctx context.Context, nodeID string, prop PropertyDescriptor) (PropertyDescriptor, error) {
	if err := validateProperty(prop); err != nil {
		return PropertyDescriptor{}, err
	}

	d.mu.RLock()
	if err := d.usable(); err != nil {
		d.mu.RUnlock()
		return PropertyDescriptor{}, err
	}
	if i := d.nodeIndex(nodeID); i >= 0 {
		if existing, ok := d.nodes[i].Property(prop.ID); ok {
			d.mu.RUnlock()
			return existing, nil
		}
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.usable(); err != nil {
		return PropertyDescriptor{}, err
	}
	i := d.nodeIndex(nodeID)
	if i < 0 {
		return PropertyDescriptor{}, fmt.Errorf("%w: %s/%s", ErrUnknownNode, d.id, nodeID)
	}
	if existing, ok := d.nodes[i].Property(prop.ID); ok {
		return existing, nil
	}

	prop = prop.DeepCopy()
	node := d.nodes[i].DeepCopy()
	node.Properties = append(node.Properties, prop)
	d.nodes[i] = node

	err := d.bracket(ctx, func(bctx context.Context) error {
		if err := d.pub.AdvertiseProperty(bctx, nodeID, prop); err != nil {
			return err
		}
		return d.pub.PublishPropertyList(bctx, nodeID, node.PropertyIDs())
	})
	if err != nil {
		return PropertyDescriptor{}, fmt.Errorf("%w: %s: insert property %s/%s: %w", ErrBracketFailed, d.id, nodeID, prop.ID, err)
	}

	d.logger.Debug("property inserted", "device_id", d.id, "node_id", nodeID, "property_id", prop.ID)
	return prop.DeepCopy(), nil
}

// Disconnect publishes $state=disconnected and closes the connection.
// Calling it on a device that is already disconnected or lost only makes sure
// the connection is closed.
func (d *Device) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateDisconnected:
		return nil
	case StateLost:
		d.state = StateDisconnected
		return nil
	}

	d.state = StateDisconnected
	pubErr := d.pub.PublishState(context.WithoutCancel(ctx), StateDisconnected)
	closeErr := d.pub.Close()
	if pubErr != nil {
		return fmt.Errorf("publishing disconnected state: %w", pubErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing bus: %w", closeErr)
	}
	return nil
}

// advertise runs bring-up. Called before the device is visible to anyone else.
func (d *Device) advertise(ctx context.Context) error {
	if err := d.pub.PublishDeviceAttr(ctx, AttrHomie, Version); err != nil {
		return err
	}
	if err := d.pub.PublishState(ctx, StateInit); err != nil {
		return err
	}
	if err := d.pub.PublishDeviceAttr(ctx, AttrName, d.name); err != nil {
		return err
	}
	for _, n := range d.nodes {
		if err := d.pub.AdvertiseNode(ctx, n); err != nil {
			return err
		}
	}
	if err := d.pub.PublishNodeList(ctx, d.nodeIDs()); err != nil {
		return err
	}
	if err := d.pub.PublishState(ctx, StateReady); err != nil {
		return err
	}
	d.state = StateReady
	return nil
}

// bracket publishes $state=init, runs change, then publishes $state=ready.
// The caller must hold the write lock.
//
// Once started the bracket ignores cancellation of ctx so it can never stop
// halfway in init. If any publish fails the device is marked lost and its
// connection is closed.
func (d *Device) bracket(ctx context.Context, change func(context.Context) error) error {
	bctx := context.WithoutCancel(ctx)

	d.state = StateInit
	err := d.pub.PublishState(bctx, StateInit)
	if err == nil {
		err = change(bctx)
	}
	if err == nil {
		err = d.pub.PublishState(bctx, StateReady)
	}
	if err != nil {
		d.fail(bctx, err)
		return err
	}
	d.state = StateReady
	return nil
}

// fail marks the device lost after a failed bracket. The caller must hold the
// write lock.
func (d *Device) fail(ctx context.Context, cause error) {
	d.state = StateLost
	d.logger.Error("topology change failed, device lost", "device_id", d.id, "error", cause)

	if err := d.pub.PublishState(ctx, StateLost); err != nil {
		d.logger.Debug("publishing lost state", "device_id", d.id, "error", err)
	}
	if err := d.pub.Close(); err != nil {
		d.logger.Debug("closing bus", "device_id", d.id, "error", err)
	}
}

// lookupNode is the read-locked fast path of NodeOrInsert.
func (d *Device) lookupNode(id string) (NodeDescriptor, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.usable(); err != nil {
		return NodeDescriptor{}, false, err
	}
	if i := d.nodeIndex(id); i >= 0 {
		return d.nodes[i].DeepCopy(), true, nil
	}
	return NodeDescriptor{}, false, nil
}

// usable reports whether the device can still publish. Requires a lock.
func (d *Device) usable() error {
	switch d.state {
	case StateLost:
		return fmt.Errorf("%w: %s", ErrDeviceLost, d.id)
	case StateDisconnected:
		return fmt.Errorf("%w: %s", ErrDeviceDisconnected, d.id)
	}
	return nil
}

// nodeIndex returns the index of the node with id, or -1. Requires a lock.
func (d *Device) nodeIndex(id string) int {
	for i, n := range d.nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// nodeIDs returns the node ids in insertion order. Requires a lock.
func (d *Device) nodeIDs() []string {
	ids := make([]string, len(d.nodes))
	for i, n := range d.nodes {
		ids[i] = n.ID
	}
	return ids
}
