package homie

import "errors"

// Domain errors for the homie package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, homie.ErrInvalidID) {
//	    // reject the configuration
//	}
var (
	// ErrInvalidID is returned when a device, node or property id breaks the
	// identifier rule (non-empty, [a-z0-9-], no leading or trailing hyphen).
	ErrInvalidID = errors.New("homie: invalid id")

	// ErrDuplicateID is returned when a staged device is given two nodes, or a
	// node two properties, with the same id.
	ErrDuplicateID = errors.New("homie: duplicate id")

	// ErrUnknownNode is returned when a node id does not exist on the device.
	ErrUnknownNode = errors.New("homie: unknown node")

	// ErrUnknownProperty is returned when a property id does not exist on the node.
	ErrUnknownProperty = errors.New("homie: unknown property")

	// ErrDeviceLost is returned for operations on a device whose connection failed.
	ErrDeviceLost = errors.New("homie: device lost")

	// ErrDeviceDisconnected is returned for operations on a device after Disconnect.
	ErrDeviceDisconnected = errors.New("homie: device disconnected")

	// ErrBringUpFailed is returned when the initial advertisement of a device fails.
	// The device never reaches ready and is not registered.
	ErrBringUpFailed = errors.New("homie: bring-up failed")

	// ErrBracketFailed is returned when a publish inside an init/ready bracket
	// fails. The device is marked lost.
	ErrBracketFailed = errors.New("homie: topology change failed")

	// ErrInvalidValue is returned when a value cannot be encoded.
	ErrInvalidValue = errors.New("homie: invalid value")

	// ErrNoDialer is returned by NewRegistry when no bus dialer is supplied.
	ErrNoDialer = errors.New("homie: dialer is required")
)
