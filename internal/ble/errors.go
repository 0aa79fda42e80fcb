package ble

import "errors"

var (
	// ErrUnsupportedPlatform is returned by NewHCIScanner outside Linux.
	ErrUnsupportedPlatform = errors.New("ble: HCI scanning is only supported on linux")

	// ErrAdapterUnavailable is returned when the HCI device cannot be opened.
	ErrAdapterUnavailable = errors.New("ble: adapter unavailable")
)
