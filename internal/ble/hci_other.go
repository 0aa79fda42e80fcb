//go:build !linux

package ble

import "context"

// Logger is the logging interface used by the scanner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// HCIScanner is unavailable on this platform.
type HCIScanner struct{}

// HCIOptions configures an HCIScanner.
type HCIOptions struct {
	DeviceID     int
	ServiceUUIDs []uint16
	Logger       Logger
}

// NewHCIScanner always fails outside Linux.
func NewHCIScanner(HCIOptions) (*HCIScanner, error) {
	return nil, ErrUnsupportedPlatform
}

// Scan always fails outside Linux.
func (*HCIScanner) Scan(context.Context, Handler) error {
	return ErrUnsupportedPlatform
}

// Close is a no-op.
func (*HCIScanner) Close() error {
	return nil
}
