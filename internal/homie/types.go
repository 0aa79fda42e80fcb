package homie

import (
	"strconv"
	"strings"
)

// Version is the Homie convention version published as $homie.
const Version = "4.0.0"

// DefaultBaseTopic is the root topic all devices are published under.
const DefaultBaseTopic = "homie"

// DeviceState is the lifecycle state published as $state.
type DeviceState string

const (
	// StateInit means the device topology is being written. Observers should
	// re-read it after the next ready.
	StateInit DeviceState = "init"

	// StateReady means the topology is complete and values are live.
	StateReady DeviceState = "ready"

	// StateDisconnected is published on graceful shutdown.
	StateDisconnected DeviceState = "disconnected"

	// StateSleeping is reserved for battery devices between reports.
	StateSleeping DeviceState = "sleeping"

	// StateLost is the last-will payload, published by the broker when the
	// connection drops uncleanly.
	StateLost DeviceState = "lost"

	// StateAlert is reserved for devices that need attention.
	StateAlert DeviceState = "alert"
)

// Datatype is the property datatype published as $datatype.
type Datatype string

// Datatypes defined by the convention.
const (
	DatatypeInteger Datatype = "integer"
	DatatypeFloat   Datatype = "float"
	DatatypeBoolean Datatype = "boolean"
	DatatypeString  Datatype = "string"
	DatatypeEnum    Datatype = "enum"
	DatatypeColor   Datatype = "color"
)

// Unit is the property unit published as $unit. The zero value means no unit.
//
// The recommended units are provided as constants; anything else is built
// with OtherUnit.
type Unit string

// Recommended units.
const (
	UnitNone             Unit = ""
	UnitDegreeCelsius    Unit = "°C"
	UnitDegreeFahrenheit Unit = "°F"
	UnitDegree           Unit = "°"
	UnitLiter            Unit = "L"
	UnitGallon           Unit = "gal"
	UnitVolt             Unit = "V"
	UnitWatt             Unit = "W"
	UnitAmpere           Unit = "A"
	UnitPercent          Unit = "%"
	UnitMeter            Unit = "m"
	UnitFeet             Unit = "ft"
	UnitPascal           Unit = "Pa"
	UnitPSI              Unit = "psi"
	UnitCount            Unit = "#"
)

// OtherUnit returns a unit outside the recommended set, e.g. "dBm".
func OtherUnit(symbol string) Unit {
	return Unit(symbol)
}

// Format describes the allowed values of a property, published as $format.
//
// The set of formats is closed: IntRange, FloatRange, EnumValues and
// ColorFormat are the only implementations.
type Format interface {
	isFormat()
}

// IntRange restricts an integer property to [Min, Max].
type IntRange struct {
	Min int64
	Max int64
}

// FloatRange restricts a float property to [Min, Max].
type FloatRange struct {
	Min float64
	Max float64
}

// EnumValues lists the values of an enum property.
type EnumValues []string

// ColorFormat selects the color space of a color property.
type ColorFormat string

// Color spaces.
const (
	ColorRGB ColorFormat = "rgb"
	ColorHSV ColorFormat = "hsv"
)

func (IntRange) isFormat()    {}
func (FloatRange) isFormat()  {}
func (EnumValues) isFormat()  {}
func (ColorFormat) isFormat() {}

// EncodeFormat renders a format as its $format payload.
// A nil format encodes as the empty string.
func EncodeFormat(f Format) string {
	switch f := f.(type) {
	case IntRange:
		return strconv.FormatInt(f.Min, 10) + ":" + strconv.FormatInt(f.Max, 10)
	case FloatRange:
		return formatFloat(f.Min) + ":" + formatFloat(f.Max)
	case EnumValues:
		return strings.Join(f, ",")
	case ColorFormat:
		return string(f)
	default:
		return ""
	}
}

// PropertyDescriptor describes one property. It is immutable once advertised.
type PropertyDescriptor struct {
	ID       string
	Name     string
	Datatype Datatype
	Settable bool
	Retained bool
	Unit     Unit
	Format   Format
}

// DeepCopy returns a copy that shares no slices with p.
func (p PropertyDescriptor) DeepCopy() PropertyDescriptor {
	if values, ok := p.Format.(EnumValues); ok {
		p.Format = append(EnumValues(nil), values...)
	}
	return p
}

// NodeDescriptor describes one node and its properties in insertion order.
type NodeDescriptor struct {
	ID         string
	Name       string
	Type       string
	Properties []PropertyDescriptor
}

// Property returns a copy of the property with the given id.
func (n NodeDescriptor) Property(id string) (PropertyDescriptor, bool) {
	for _, p := range n.Properties {
		if p.ID == id {
			return p.DeepCopy(), true
		}
	}
	return PropertyDescriptor{}, false
}

// PropertyIDs returns the property ids in insertion order.
func (n NodeDescriptor) PropertyIDs() []string {
	ids := make([]string, len(n.Properties))
	for i, p := range n.Properties {
		ids[i] = p.ID
	}
	return ids
}

// DeepCopy returns a copy that shares no slices with n.
func (n NodeDescriptor) DeepCopy() NodeDescriptor {
	cp := n
	cp.Properties = make([]PropertyDescriptor, len(n.Properties))
	for i, p := range n.Properties {
		cp.Properties[i] = p.DeepCopy()
	}
	return cp
}

// DeviceDescriptor is a read view of a device and its nodes in insertion order.
type DeviceDescriptor struct {
	ID    string
	Name  string
	State DeviceState
	Nodes []NodeDescriptor
}

// Node returns the node with the given id.
func (d DeviceDescriptor) Node(id string) (NodeDescriptor, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeDescriptor{}, false
}

// NodeIDs returns the node ids in insertion order.
func (d DeviceDescriptor) NodeIDs() []string {
	ids := make([]string, len(d.Nodes))
	for i, n := range d.Nodes {
		ids[i] = n.ID
	}
	return ids
}
