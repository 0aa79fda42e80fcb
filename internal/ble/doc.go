// Package ble scans for Bluetooth Low Energy advertisements.
//
// The Scanner interface hides the radio: the bridge only sees Advertisement
// values carrying the peripheral address, the optional local name and RSSI,
// and service data keyed by 16-bit service UUID. HCIScanner implements it on
// Linux with github.com/go-ble/ble over a raw HCI socket, which needs
// CAP_NET_ADMIN or root.
package ble
