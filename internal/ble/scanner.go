package ble

import (
	"context"
	"strings"
)

// Advertisement is one received advertising report.
type Advertisement struct {
	// Address is the peripheral's MAC address, lower case, colon separated.
	Address string

	// Name is the advertised local name. Empty when the peripheral sent none.
	Name string

	// RSSI is the received signal strength in dBm, nil when unknown.
	RSSI *int16

	// ServiceData maps 16-bit service UUIDs to their payload.
	ServiceData map[uint16][]byte
}

// Data returns the service data for uuid.
func (a Advertisement) Data(uuid uint16) ([]byte, bool) {
	b, ok := a.ServiceData[uuid]
	return b, ok
}

// Handler receives advertisements. It is called from the scanning goroutine
// and must not block for long.
type Handler func(Advertisement)

// Scanner delivers advertisements until ctx is done.
type Scanner interface {
	Scan(ctx context.Context, handler Handler) error
}

// NormalizeAddress lower-cases a MAC address so it can be used as a map key.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
