package zigbee2mqtt

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/nerrad567/gray-logic-bthome/internal/homie"
)

// DeviceIDPrefix starts every device id published by this bridge.
const DeviceIDPrefix = "zigbee2mqtt-"

// Node ids.
const (
	NodeLink    = "link"
	NodeBattery = "battery"
	NodeAction  = "action"
	NodeSensors = "sensors"
)

// Mapping is the Homie shape of one zigbee2mqtt device.
type Mapping struct {
	ID         string
	Name       string
	StateTopic string
	Nodes      []homie.NodeDescriptor

	// Bindings maps state message fields to properties.
	Bindings map[string]Binding

	// Skipped lists exposes that have no Homie mapping.
	Skipped []string
}

// Binding routes one state field to a property.
type Binding struct {
	NodeID   string
	Property homie.PropertyDescriptor

	valueOn  any
	valueOff any
}

// Convert turns a decoded JSON state field into a Homie value. ok is false
// when the field does not fit the property.
func (b Binding) Convert(raw any) (homie.Value, bool) {
	switch b.Property.Datatype {
	case homie.DatatypeInteger:
		f, ok := raw.(float64)
		if !ok {
			return nil, false
		}
		return homie.Integer(int64(math.Round(f))), true
	case homie.DatatypeFloat:
		f, ok := raw.(float64)
		if !ok {
			return nil, false
		}
		return homie.Float(f), true
	case homie.DatatypeBoolean:
		switch {
		case sameScalar(raw, b.valueOn):
			return homie.Boolean(true), true
		case sameScalar(raw, b.valueOff):
			return homie.Boolean(false), true
		}
		if v, ok := raw.(bool); ok {
			return homie.Boolean(v), true
		}
		return nil, false
	case homie.DatatypeEnum:
		s, ok := raw.(string)
		if !ok || s == "" {
			return nil, false
		}
		if values, isEnum := b.Property.Format.(homie.EnumValues); isEnum && !slices.Contains(values, s) {
			return nil, false
		}
		return homie.Enum(s), true
	case homie.DatatypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, false
		}
		return homie.String(s), true
	}
	return nil, false
}

// DeviceID derives the Homie device id from an IEEE address.
func DeviceID(ieee string) string {
	return DeviceIDPrefix + strings.ToLower(ieee)
}

// MapDevice builds the Homie mapping of a device. baseTopic is the
// zigbee2mqtt base topic state messages are published under.
func MapDevice(info DeviceInfo, baseTopic string) (Mapping, error) {
	switch {
	case info.Type == DeviceCoordinator:
		return Mapping{}, fmt.Errorf("%w: %s is the coordinator", ErrNotPublishable, info.IEEEAddress)
	case info.Disabled:
		return Mapping{}, fmt.Errorf("%w: %s is disabled", ErrNotPublishable, info.IEEEAddress)
	case !info.InterviewCompleted || info.Definition == nil:
		return Mapping{}, fmt.Errorf("%w: %s has not completed its interview", ErrNotPublishable, info.IEEEAddress)
	}

	id := DeviceID(info.IEEEAddress)
	if !homie.ValidID(id) {
		return Mapping{}, fmt.Errorf("%w: %s", homie.ErrInvalidID, id)
	}

	friendly := info.FriendlyName
	if friendly == "" {
		friendly = info.IEEEAddress
	}
	name := info.FriendlyName
	if name == "" || name == info.IEEEAddress {
		name = info.ModelID
	}
	if name == "" {
		name = info.IEEEAddress
	}

	m := Mapping{
		ID:         id,
		Name:       name,
		StateTopic: baseTopic + "/" + friendly,
		Bindings:   make(map[string]Binding),
	}
	for _, e := range info.Definition.Exposes {
		m.add(e)
	}
	return m, nil
}

// add maps one expose. Specific exposes are flattened into their features.
func (m *Mapping) add(e Expose) {
	if len(e.Features) > 0 {
		for _, f := range e.Features {
			m.add(f)
		}
		return
	}

	field := e.Property
	if field == "" {
		field = e.Name
	}
	if field == "" {
		return
	}
	if !e.Access.Published() {
		m.Skipped = append(m.Skipped, field+" (not published)")
		return
	}
	if _, dup := m.Bindings[field]; dup {
		return
	}

	nodeID, node, prop, ok := mapExpose(e, field)
	if !ok {
		m.Skipped = append(m.Skipped, field+" ("+e.Type+")")
		return
	}

	binding := Binding{
		NodeID:   nodeID,
		Property: prop,
		valueOn:  e.ValueOn,
		valueOff: e.ValueOff,
	}
	for i := range m.Nodes {
		if m.Nodes[i].ID != nodeID {
			continue
		}
		if _, taken := m.Nodes[i].Property(prop.ID); taken {
			m.Skipped = append(m.Skipped, field+" (duplicate id "+prop.ID+")")
			return
		}
		m.Nodes[i].Properties = append(m.Nodes[i].Properties, prop)
		m.Bindings[field] = binding
		return
	}
	node.Properties = []homie.PropertyDescriptor{prop}
	m.Nodes = append(m.Nodes, node)
	m.Bindings[field] = binding
}

func mapExpose(e Expose, field string) (string, homie.NodeDescriptor, homie.PropertyDescriptor, bool) {
	switch {
	case e.Type == "numeric" && field == "linkquality":
		return NodeLink,
			homie.NodeDescriptor{ID: NodeLink, Name: "Link", Type: "zigbee"},
			homie.PropertyDescriptor{
				ID:       "quality",
				Name:     "Quality",
				Datatype: homie.DatatypeInteger,
				Retained: true,
				Unit:     homie.OtherUnit("lqi"),
				Format:   homie.IntRange{Min: 0, Max: 255},
			}, true

	case e.Type == "numeric" && field == "battery":
		return NodeBattery,
			homie.NodeDescriptor{ID: NodeBattery, Name: "Battery", Type: "battery"},
			homie.PropertyDescriptor{
				ID:       "level",
				Name:     "Level",
				Datatype: homie.DatatypeInteger,
				Retained: true,
				Unit:     homie.UnitPercent,
				Format:   homie.IntRange{Min: 0, Max: 100},
			}, true

	case e.Type == "enum" && field == "action":
		return NodeAction,
			homie.NodeDescriptor{ID: NodeAction, Name: "Action", Type: "action"},
			homie.PropertyDescriptor{
				ID:       "action",
				Name:     "Action",
				Datatype: homie.DatatypeEnum,
				Retained: false,
				Format:   homie.EnumValues(slices.Clone(e.Values)),
			}, true
	}

	propID := propertyID(field)
	if !homie.ValidID(propID) {
		return "", homie.NodeDescriptor{}, homie.PropertyDescriptor{}, false
	}
	prop := homie.PropertyDescriptor{
		ID:       propID,
		Name:     displayName(e, field),
		Retained: true,
	}

	switch e.Type {
	case "numeric":
		prop.Datatype = homie.DatatypeFloat
		prop.Unit = homie.OtherUnit(e.Unit)
		if e.ValueMin != nil && e.ValueMax != nil {
			prop.Format = homie.FloatRange{Min: *e.ValueMin, Max: *e.ValueMax}
		}
	case "binary":
		prop.Datatype = homie.DatatypeBoolean
	case "enum":
		if len(e.Values) == 0 {
			return "", homie.NodeDescriptor{}, homie.PropertyDescriptor{}, false
		}
		prop.Datatype = homie.DatatypeEnum
		prop.Format = homie.EnumValues(slices.Clone(e.Values))
	case "text":
		prop.Datatype = homie.DatatypeString
	default:
		return "", homie.NodeDescriptor{}, homie.PropertyDescriptor{}, false
	}

	return NodeSensors, homie.NodeDescriptor{ID: NodeSensors, Name: "Sensors", Type: "zigbee"}, prop, true
}

// propertyID turns a zigbee2mqtt property name into a Homie id:
// "soil_moisture" becomes "soil-moisture".
func propertyID(field string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(field) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '-' || r == ' ':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

func displayName(e Expose, field string) string {
	name := e.Name
	if name == "" {
		name = field
	}
	name = strings.ReplaceAll(name, "_", " ")
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// sameScalar compares two decoded JSON scalars.
func sameScalar(a, b any) bool {
	switch a := a.(type) {
	case string:
		bs, ok := b.(string)
		return ok && a == bs
	case bool:
		bb, ok := b.(bool)
		return ok && a == bb
	case float64:
		bf, ok := b.(float64)
		return ok && a == bf
	}
	return false
}

// DecodeState decodes a state message into its fields.
func DecodeState(payload []byte) (map[string]any, error) {
	var state map[string]any
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, err
	}
	return state, nil
}
