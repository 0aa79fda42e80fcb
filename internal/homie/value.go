package homie

import (
	"fmt"
	"strconv"
	"time"
)

// Value is a property value ready to be published.
//
// The set of values is closed; the concrete types below are the only
// implementations and EncodeValue handles each of them.
type Value interface {
	isValue()
}

// Integer is an integer property value.
type Integer int64

// Float is a float property value.
type Float float64

// Percent is a float value expressed in percent.
type Percent float64

// Boolean is a boolean property value.
type Boolean bool

// String is a string property value.
type String string

// Enum is one of the values listed in an EnumValues format.
type Enum string

// RGB is a color value in the rgb color space.
type RGB struct {
	R, G, B uint8
}

// HSV is a color value in the hsv color space.
type HSV struct {
	H    uint16
	S, V uint8
}

// DateTime is a timestamp value.
type DateTime time.Time

// Duration is a duration value, published in whole seconds.
type Duration time.Duration

func (Integer) isValue()  {}
func (Float) isValue()    {}
func (Percent) isValue()  {}
func (Boolean) isValue()  {}
func (String) isValue()   {}
func (Enum) isValue()     {}
func (RGB) isValue()      {}
func (HSV) isValue()      {}
func (DateTime) isValue() {}
func (Duration) isValue() {}

// EncodeValue renders a value as its MQTT payload.
//
// Numbers use the shortest decimal text that round-trips, booleans are
// "true"/"false", colors are comma separated components, timestamps are
// RFC 3339 and durations are whole seconds.
func EncodeValue(v Value) ([]byte, error) {
	switch v := v.(type) {
	case Integer:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case Float:
		return []byte(formatFloat(float64(v))), nil
	case Percent:
		return []byte(formatFloat(float64(v))), nil
	case Boolean:
		return strconv.AppendBool(nil, bool(v)), nil
	case String:
		return []byte(v), nil
	case Enum:
		return []byte(v), nil
	case RGB:
		return []byte(fmt.Sprintf("%d,%d,%d", v.R, v.G, v.B)), nil
	case HSV:
		return []byte(fmt.Sprintf("%d,%d,%d", v.H, v.S, v.V)), nil
	case DateTime:
		return []byte(time.Time(v).Format(time.RFC3339)), nil
	case Duration:
		return strconv.AppendInt(nil, int64(time.Duration(v)/time.Second), 10), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidValue, v)
	}
}

// formatFloat prints f without exponent and without trailing zeros, so 25.0
// becomes "25" and 0.5 becomes "0.5".
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
