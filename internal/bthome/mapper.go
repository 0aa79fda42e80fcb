package bthome

import (
	"fmt"
	"strconv"

	"github.com/nerrad567/gray-logic-bthome/internal/homie"
)

// Node and property ids used for every BTHome device.
const (
	NodeSensors  = "sensors"
	NodeLink     = "link"
	PropertyRSSI = "rssi"
)

var percentRange = homie.FloatRange{Min: 0, Max: 100}

var (
	batteryProperty = homie.PropertyDescriptor{
		ID:       "battery",
		Name:     "Battery",
		Datatype: homie.DatatypeFloat,
		Retained: true,
		Unit:     homie.UnitPercent,
		Format:   percentRange,
	}
	temperatureProperty = homie.PropertyDescriptor{
		ID:       "temperature",
		Name:     "Temperature",
		Datatype: homie.DatatypeFloat,
		Retained: true,
		Unit:     homie.UnitDegreeCelsius,
	}
	humidityProperty = homie.PropertyDescriptor{
		ID:       "humidity",
		Name:     "Humidity",
		Datatype: homie.DatatypeFloat,
		Retained: true,
		Unit:     homie.UnitPercent,
		Format:   percentRange,
	}
	voltageProperty = homie.PropertyDescriptor{
		ID:       "voltage",
		Name:     "Voltage",
		Datatype: homie.DatatypeFloat,
		Retained: true,
		Unit:     homie.UnitVolt,
	}
	powerProperty = homie.PropertyDescriptor{
		ID:       "power",
		Name:     "Power",
		Datatype: homie.DatatypeBoolean,
		Retained: true,
	}
	rssiProperty = homie.PropertyDescriptor{
		ID:       PropertyRSSI,
		Name:     "RSSI",
		Datatype: homie.DatatypeInteger,
		Retained: true,
		Unit:     homie.OtherUnit("dBm"),
	}
)

// MapReading returns the property a reading is published as, together with
// its value. Every property lives on the NodeSensors node.
func MapReading(r Reading) (homie.PropertyDescriptor, homie.Value) {
	switch r := r.(type) {
	case Battery:
		return batteryProperty, homie.Float(widen(float32(r)))
	case Temperature:
		return temperatureProperty, homie.Float(widen(float32(r)))
	case Humidity:
		return humidityProperty, homie.Float(widen(float32(r)))
	case Voltage:
		return voltageProperty, homie.Float(widen(float32(r)))
	case Power:
		return powerProperty, homie.Boolean(bool(r))
	default:
		// Unreachable for the closed set of readings; only nil gets here.
		panic(fmt.Sprintf("bthome: unmapped reading %T", r))
	}
}

// SensorsNode describes the node readings are published under. It starts
// without properties; they are inserted as reading kinds are first seen.
func SensorsNode() homie.NodeDescriptor {
	return homie.NodeDescriptor{ID: NodeSensors, Name: "Sensors", Type: "bthome"}
}

// LinkNode describes the radio link node carrying the RSSI property.
func LinkNode() homie.NodeDescriptor {
	return homie.NodeDescriptor{
		ID:         NodeLink,
		Name:       "Link",
		Type:       "ble",
		Properties: []homie.PropertyDescriptor{rssiProperty},
	}
}

// RSSIProperty describes the signal strength property on LinkNode.
func RSSIProperty() homie.PropertyDescriptor {
	return rssiProperty
}

// widen converts through the shortest float32 decimal so 21.3 stays 21.3
// instead of 21.299999237060547.
func widen(f float32) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(float64(f), 'f', -1, 32), 64)
	if err != nil {
		return float64(f)
	}
	return v
}
