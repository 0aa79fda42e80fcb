package zigbee2mqtt

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// DeviceType is the Zigbee role of a device.
type DeviceType string

// Device roles reported by zigbee2mqtt.
const (
	DeviceCoordinator DeviceType = "Coordinator"
	DeviceRouter      DeviceType = "Router"
	DeviceEndDevice   DeviceType = "EndDevice"
)

// DeviceInfo is one entry of the retained zigbee2mqtt/bridge/devices list.
type DeviceInfo struct {
	IEEEAddress        string      `json:"ieee_address"`
	FriendlyName       string      `json:"friendly_name"`
	ModelID            string      `json:"model_id"`
	Manufacturer       string      `json:"manufacturer"`
	PowerSource        string      `json:"power_source"`
	Type               DeviceType  `json:"type"`
	InterviewCompleted bool        `json:"interview_completed"`
	Disabled           bool        `json:"disabled"`
	Definition         *Definition `json:"definition"`
}

// Definition describes what a device model exposes.
type Definition struct {
	Model       string   `json:"model"`
	Vendor      string   `json:"vendor"`
	Description string   `json:"description"`
	Exposes     []Expose `json:"exposes"`
}

// Expose is one capability of a device. Generic exposes (numeric, binary,
// enum, text) carry a property; specific ones (light, switch, climate...)
// group generic features.
type Expose struct {
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Property    string   `json:"property"`
	Unit        string   `json:"unit"`
	Description string   `json:"description"`
	Access      Access   `json:"access"`
	Values      []string `json:"values"`
	ValueMin    *float64 `json:"value_min"`
	ValueMax    *float64 `json:"value_max"`
	ValueOn     any      `json:"value_on"`
	ValueOff    any      `json:"value_off"`
	Features    []Expose `json:"features"`
}

// Access is the zigbee2mqtt access bitmask.
type Access uint8

// Access bits.
const (
	AccessPublished Access = 1 << iota // value appears in the state message
	AccessSettable                     // value can be set with /set
	AccessGettable                     // value can be read with /get
)

// Published reports whether the property appears in state messages.
func (a Access) Published() bool { return a&AccessPublished != 0 }

// Settable reports whether the property can be written.
func (a Access) Settable() bool { return a&AccessSettable != 0 }

// Gettable reports whether the property can be polled.
func (a Access) Gettable() bool { return a&AccessGettable != 0 }

func (a Access) String() string {
	var parts []string
	if a.Published() {
		parts = append(parts, "published")
	}
	if a.Settable() {
		parts = append(parts, "settable")
	}
	if a.Gettable() {
		parts = append(parts, "gettable")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// InvalidDevice is a device list entry that was rejected.
type InvalidDevice struct {
	Index int
	Err   error
}

//go:embed schema/device.json
var deviceSchemaJSON []byte

var (
	deviceSchema     *gojsonschema.Schema
	deviceSchemaErr  error
	deviceSchemaOnce sync.Once
)

func loadDeviceSchema() (*gojsonschema.Schema, error) {
	deviceSchemaOnce.Do(func() {
		deviceSchema, deviceSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(deviceSchemaJSON))
	})
	return deviceSchema, deviceSchemaErr
}

// ValidateDevice checks one raw device entry against the device schema.
func ValidateDevice(raw []byte) error {
	schema, err := loadDeviceSchema()
	if err != nil {
		return fmt.Errorf("loading device schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDevice, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidDevice, strings.Join(msgs, "; "))
	}
	return nil
}

// ParseDevices decodes the bridge/devices payload. Entries that fail the
// schema or do not decode are returned in invalid; the rest of the list is
// still usable.
func ParseDevices(payload []byte) (devices []DeviceInfo, invalid []InvalidDevice, err error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidDeviceList, err)
	}

	devices = make([]DeviceInfo, 0, len(entries))
	for i, raw := range entries {
		if err := ValidateDevice(raw); err != nil {
			invalid = append(invalid, InvalidDevice{Index: i, Err: err})
			continue
		}
		var info DeviceInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			invalid = append(invalid, InvalidDevice{Index: i, Err: fmt.Errorf("%w: %w", ErrInvalidDevice, err)})
			continue
		}
		devices = append(devices, info)
	}
	return devices, invalid, nil
}
