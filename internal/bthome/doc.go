// Package bthome decodes BTHome sensor advertisements and maps the readings
// onto Homie property descriptors.
//
// BTHome sensors broadcast their measurements as BLE service data under the
// 16-bit service UUID 0x181C. After a 3-byte device-info header the payload is
// a sequence of segments:
//
//	┌────────────┬───────────┬───────────────────┐
//	│ header     │ object id │ value             │
//	│ ttt lllll  │ 1 byte    │ len-1 bytes, LE   │
//	└────────────┴───────────┴───────────────────┘
//
// The low 5 bits of the header give the segment length (object id included),
// the top 3 bits the numeric encoding (0 unsigned, 1 signed, 2 float).
//
// # Usage
//
//	readings, err := bthome.Decode(serviceData)
//	if err != nil {
//	    return err // whole advertisement discarded
//	}
//	for _, r := range readings {
//	    prop, value := bthome.MapReading(r)
//	    ...
//	}
package bthome
