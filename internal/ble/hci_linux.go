//go:build linux

package ble

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	goble "github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

// Logger is the logging interface used by the scanner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}

// HCIScanner scans on a local HCI adapter.
type HCIScanner struct {
	device *linux.Device
	filter map[uint16]struct{}
	logger Logger

	closeOnce sync.Once
}

// HCIOptions configures an HCIScanner.
type HCIOptions struct {
	// DeviceID selects hciN. Default: 0.
	DeviceID int

	// ServiceUUIDs restricts delivery to advertisements carrying service data
	// for at least one of these UUIDs. Empty delivers everything.
	ServiceUUIDs []uint16

	// Logger is optional.
	Logger Logger
}

// NewHCIScanner opens the HCI adapter. Call Close when done.
func NewHCIScanner(opts HCIOptions) (*HCIScanner, error) {
	dev, err := linux.NewDevice(goble.OptDeviceID(opts.DeviceID))
	if err != nil {
		return nil, fmt.Errorf("%w: hci%d: %w", ErrAdapterUnavailable, opts.DeviceID, err)
	}

	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	filter := make(map[uint16]struct{}, len(opts.ServiceUUIDs))
	for _, u := range opts.ServiceUUIDs {
		filter[u] = struct{}{}
	}

	logger.Info("ble adapter opened", "hci", opts.DeviceID, "addr", dev.Address().String())
	return &HCIScanner{device: dev, filter: filter, logger: logger}, nil
}

// Scan runs an active scan with duplicates allowed, so every report from a
// sensor is delivered. It returns nil when ctx is cancelled.
func (s *HCIScanner) Scan(ctx context.Context, handler Handler) error {
	err := s.device.Scan(ctx, true, func(a goble.Advertisement) {
		adv := convert(a)
		if !s.wanted(adv) {
			return
		}
		handler(adv)
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("scanning: %w", err)
	}
	return nil
}

// Close releases the HCI adapter.
func (s *HCIScanner) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.device.Stop()
	})
	return err
}

func (s *HCIScanner) wanted(adv Advertisement) bool {
	if len(s.filter) == 0 {
		return true
	}
	for u := range adv.ServiceData {
		if _, ok := s.filter[u]; ok {
			return true
		}
	}
	return false
}

func convert(a goble.Advertisement) Advertisement {
	rssi := int16(a.RSSI())
	adv := Advertisement{
		Address:     NormalizeAddress(a.Addr().String()),
		Name:        a.LocalName(),
		RSSI:        &rssi,
		ServiceData: make(map[uint16][]byte),
	}
	for _, sd := range a.ServiceData() {
		// go-ble keeps UUIDs in little-endian wire order.
		if len(sd.UUID) != 2 {
			continue
		}
		adv.ServiceData[binary.LittleEndian.Uint16(sd.UUID)] = append([]byte(nil), sd.Data...)
	}
	return adv
}
