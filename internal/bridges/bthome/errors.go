package bthome

import "errors"

var (
	// ErrUnknownPeripheral is returned for a peripheral that is not
	// configured while unknown peripherals are not allowed.
	ErrUnknownPeripheral = errors.New("bthome bridge: unknown peripheral")

	// ErrNoName is returned when neither the configuration nor the
	// advertisement gives the peripheral a name.
	ErrNoName = errors.New("bthome bridge: peripheral has no name")

	// ErrNoScanner is returned by New when no scanner is supplied.
	ErrNoScanner = errors.New("bthome bridge: scanner is required")

	// ErrNoRegistry is returned by New when no registry is supplied.
	ErrNoRegistry = errors.New("bthome bridge: registry is required")
)
