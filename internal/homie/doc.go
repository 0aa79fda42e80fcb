// Package homie publishes devices on the MQTT bus following the Homie 4.0.0
// device/node/property convention.
//
// The package owns every device, node and property descriptor for the life of
// the process. Callers stage a device with NewPendingDevice, hand it to
// Registry.Register for bring-up, and from then on work through the live
// *Device handle: Send publishes values, NodeOrInsert and PropertyOrInsert grow
// the topology.
//
// # Topology changes
//
// Every structural change on a device that is already ready is bracketed by
// lifecycle states so that observers never cache a half-written description:
//
//	homie/D/$state        = init
//	homie/D/N/P/$name     ...         (new descriptor topics)
//	homie/D/N/$properties = a,b,P     (updated id list)
//	homie/D/$state        = ready
//
// Brackets on one device are serialised by that device's lock; devices never
// block each other.
//
// # Usage
//
//	registry, err := homie.NewRegistry(homie.Options{Dialer: dialer})
//	pending, err := homie.NewPendingDevice("sensor-1", "Kitchen sensor")
//	err = pending.AddNode(homie.NodeDescriptor{ID: "sensors", Name: "Sensors", Type: "bthome"})
//	dev, err := registry.Register(ctx, pending)
//	err = dev.Send(ctx, "sensors", "temperature", homie.Float(21.5))
package homie
