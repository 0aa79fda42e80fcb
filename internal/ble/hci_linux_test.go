//go:build linux

package ble

import (
	"testing"

	goble "github.com/go-ble/ble"
)

// fakeAdvertisement overrides the methods convert reads; the embedded
// interface is nil and panics if anything else is called.
type fakeAdvertisement struct {
	goble.Advertisement
	name string
	addr string
	rssi int
	sd   []goble.ServiceData
}

func (f fakeAdvertisement) LocalName() string                { return f.name }
func (f fakeAdvertisement) Addr() goble.Addr                 { return goble.NewAddr(f.addr) }
func (f fakeAdvertisement) RSSI() int                        { return f.rssi }
func (f fakeAdvertisement) ServiceData() []goble.ServiceData { return f.sd }

func TestConvert(t *testing.T) {
	payload := []byte{0x40, 0x00, 0x01, 0x02, 0x01, 0x55}
	a := fakeAdvertisement{
		name: "ATC_000001",
		addr: "A4:C1:38:00:00:01",
		rssi: -71,
		sd: []goble.ServiceData{
			{UUID: goble.UUID16(0x181c), Data: payload},
			{UUID: goble.MustParse("0000fe95-0000-1000-8000-00805f9b34fb"), Data: []byte{0x01}},
		},
	}

	adv := convert(a)
	if adv.Address != "a4:c1:38:00:00:01" {
		t.Errorf("Address = %q", adv.Address)
	}
	if adv.Name != "ATC_000001" {
		t.Errorf("Name = %q", adv.Name)
	}
	if adv.RSSI == nil || *adv.RSSI != -71 {
		t.Errorf("RSSI = %v, want -71", adv.RSSI)
	}
	data, ok := adv.Data(0x181c)
	if !ok || string(data) != string(payload) {
		t.Errorf("Data(0x181c) = %x, %v", data, ok)
	}
	if len(adv.ServiceData) != 1 {
		t.Errorf("ServiceData has %d entries, 128-bit UUIDs should be skipped", len(adv.ServiceData))
	}

	payload[0] = 0xff
	if data[0] == 0xff {
		t.Error("service data should be copied")
	}
}

func TestHCIScanner_Filter(t *testing.T) {
	s := &HCIScanner{filter: map[uint16]struct{}{0x181c: {}}}

	if !s.wanted(Advertisement{ServiceData: map[uint16][]byte{0x181c: nil}}) {
		t.Error("advertisement with 0x181c should pass")
	}
	if s.wanted(Advertisement{ServiceData: map[uint16][]byte{0xfcd2: nil}}) {
		t.Error("advertisement without 0x181c should be dropped")
	}

	open := &HCIScanner{}
	if !open.wanted(Advertisement{}) {
		t.Error("empty filter should pass everything")
	}
}
