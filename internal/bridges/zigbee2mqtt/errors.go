package zigbee2mqtt

import "errors"

var (
	// ErrInvalidDeviceList is returned when bridge/devices is not a JSON array.
	ErrInvalidDeviceList = errors.New("zigbee2mqtt: invalid device list")

	// ErrInvalidDevice is returned for a device entry that fails schema validation.
	ErrInvalidDevice = errors.New("zigbee2mqtt: invalid device")

	// ErrNotPublishable is returned for devices that are skipped on purpose:
	// the coordinator, disabled devices, and devices still interviewing.
	ErrNotPublishable = errors.New("zigbee2mqtt: device not publishable")

	// ErrNoSubscriber is returned by New when no MQTT subscriber is supplied.
	ErrNoSubscriber = errors.New("zigbee2mqtt: subscriber is required")

	// ErrNoRegistry is returned by New when no registry is supplied.
	ErrNoRegistry = errors.New("zigbee2mqtt: registry is required")
)
