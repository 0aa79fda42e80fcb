package homie

import "strings"

// Attribute topic names.
const (
	AttrHomie      = "$homie"
	AttrState      = "$state"
	AttrName       = "$name"
	AttrNodes      = "$nodes"
	AttrType       = "$type"
	AttrProperties = "$properties"
	AttrDatatype   = "$datatype"
	AttrSettable   = "$settable"
	AttrRetained   = "$retained"
	AttrFormat     = "$format"
	AttrUnit       = "$unit"
)

// Topics builds topic paths under a base topic.
//
//	topics := homie.Topics{Base: "homie"}
//	topics.Value("sensor-1", "sensors", "temperature")
//	// Returns: "homie/sensor-1/sensors/temperature"
type Topics struct {
	Base string
}

func (t Topics) base() string {
	if t.Base == "" {
		return DefaultBaseTopic
	}
	return t.Base
}

// =============================================================================
// Device level
// =============================================================================

// Device returns a device attribute topic.
//
// Example: homie/sensor-1/$state
func (t Topics) Device(deviceID, attr string) string {
	return join(t.base(), deviceID, attr)
}

// DeviceWildcard matches every topic of one device.
//
// Pattern: homie/sensor-1/#
func (t Topics) DeviceWildcard(deviceID string) string {
	return join(t.base(), deviceID, "#")
}

// =============================================================================
// Node level
// =============================================================================

// Node returns a node attribute topic.
//
// Example: homie/sensor-1/sensors/$properties
func (t Topics) Node(deviceID, nodeID, attr string) string {
	return join(t.base(), deviceID, nodeID, attr)
}

// =============================================================================
// Property level
// =============================================================================

// Property returns a property attribute topic.
//
// Example: homie/sensor-1/sensors/temperature/$unit
func (t Topics) Property(deviceID, nodeID, propertyID, attr string) string {
	return join(t.base(), deviceID, nodeID, propertyID, attr)
}

// Value returns the topic a property value is published on.
//
// Example: homie/sensor-1/sensors/temperature
func (t Topics) Value(deviceID, nodeID, propertyID string) string {
	return join(t.base(), deviceID, nodeID, propertyID)
}

// =============================================================================
// Wildcards
// =============================================================================

// All matches every topic under the base.
//
// Pattern: homie/#
func (t Topics) All() string {
	return join(t.base(), "#")
}

func join(parts ...string) string {
	return strings.Join(parts, "/")
}
