package bthome

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ServiceUUID is the 16-bit service UUID BTHome advertisements are sent under.
const ServiceUUID uint16 = 0x181c

// headerLen is the device-info prefix skipped before the first segment.
const headerLen = 3

// Numeric encodings carried in the top 3 bits of a segment header.
const (
	encodingUnsigned = 0
	encodingSigned   = 1
	encodingFloat    = 2
)

// Object ids.
const (
	objectBattery     = 0x01
	objectTemperature = 0x02
	objectHumidity    = 0x03
	objectVoltage     = 0x0c
	objectPower       = 0x10
)

// Decode parses the service data of one advertisement into readings, in the
// order their segments appear.
//
// Decoding stops at the first bad segment and the whole buffer is rejected:
// no readings are returned alongside an error, even if earlier segments were
// valid. Errors wrap ErrUnsupportedEncoding, ErrUnknownReadingKind or
// ErrTruncated.
//
// Example:
//
//	Decode([]byte{0x40, 0x00, 0x01, 0x03, 0x02, 0xc4, 0x09})
//	// Returns: [Temperature(25)]
func Decode(data []byte) ([]Reading, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("%w: %d bytes, header needs %d", ErrTruncated, len(data), headerLen)
	}

	var out []Reading
	for off := headerLen; off < len(data); {
		header := data[off]
		segLen := int(header & 0x1f)
		encoding := header >> 5
		off++

		if segLen == 0 {
			return nil, fmt.Errorf("%w: empty segment at offset %d", ErrTruncated, off-1)
		}
		if segLen > len(data)-off {
			return nil, fmt.Errorf("%w: segment at offset %d needs %d bytes, %d left",
				ErrTruncated, off-1, segLen, len(data)-off)
		}
		segment := data[off : off+segLen]
		off += segLen

		raw, err := decodeValue(segLen, encoding, segment[1:])
		if err != nil {
			return nil, fmt.Errorf("segment at offset %d: %w", off-segLen-1, err)
		}
		reading, err := toReading(segment[0], raw)
		if err != nil {
			return nil, fmt.Errorf("segment at offset %d: %w", off-segLen-1, err)
		}
		out = append(out, reading)
	}
	return out, nil
}

// decodeValue reads the numeric value of a segment, before scaling.
func decodeValue(segLen int, encoding byte, b []byte) (float64, error) {
	switch {
	case segLen == 2 && encoding == encodingUnsigned:
		return float64(b[0]), nil
	case segLen == 3 && encoding == encodingUnsigned:
		return float64(binary.LittleEndian.Uint16(b)), nil
	case segLen == 2 && encoding == encodingSigned:
		return float64(int8(b[0])), nil
	case segLen == 3 && encoding == encodingSigned:
		return float64(int16(binary.LittleEndian.Uint16(b))), nil
	case segLen == 5 && encoding == encodingFloat:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	default:
		return 0, fmt.Errorf("%w: length %d type %d", ErrUnsupportedEncoding, segLen, encoding)
	}
}

// toReading applies the per-object scaling. Division happens in float64 so
// that e.g. 2500 becomes exactly 25 after narrowing.
func toReading(id byte, raw float64) (Reading, error) {
	switch id {
	case objectBattery:
		return Battery(raw), nil
	case objectTemperature:
		return Temperature(raw / 100), nil
	case objectHumidity:
		return Humidity(raw / 100), nil
	case objectVoltage:
		return Voltage(raw / 1000), nil
	case objectPower:
		return Power(raw > 0), nil
	default:
		return nil, fmt.Errorf("%w: object id 0x%02x", ErrUnknownReadingKind, id)
	}
}
