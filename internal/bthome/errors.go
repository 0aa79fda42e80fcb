package bthome

import "errors"

// Decode errors. A failing advertisement yields no readings at all.
var (
	// ErrUnsupportedEncoding is returned when a segment's (length, type) pair
	// is not one of the supported numeric encodings.
	ErrUnsupportedEncoding = errors.New("bthome: unsupported encoding")

	// ErrUnknownReadingKind is returned for an object id this package does not map.
	ErrUnknownReadingKind = errors.New("bthome: unknown reading kind")

	// ErrTruncated is returned when the buffer ends inside the header or a segment.
	ErrTruncated = errors.New("bthome: truncated advertisement")
)
