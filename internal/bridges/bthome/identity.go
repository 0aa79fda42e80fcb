package bthome

import (
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-bthome/internal/ble"
	"github.com/nerrad567/gray-logic-bthome/internal/infrastructure/config"
)

// GeneratedIDPrefix starts the id of peripherals missing from the config.
const GeneratedIDPrefix = "bthome-"

// Identity is the Homie identity of a peripheral.
type Identity struct {
	ID   string
	Name string
}

// resolver maps peripheral addresses to Homie identities.
type resolver struct {
	static       map[string]config.BLEDeviceConfig
	allowUnknown bool
}

func newResolver(cfg config.BLEConfig) *resolver {
	static := make(map[string]config.BLEDeviceConfig, len(cfg.Devices))
	for _, d := range cfg.Devices {
		static[ble.NormalizeAddress(d.Address)] = d
	}
	return &resolver{static: static, allowUnknown: cfg.AllowUnknown}
}

// resolve returns the identity for an advertisement. A configured name wins
// over the advertised one.
func (r *resolver) resolve(adv ble.Advertisement) (Identity, error) {
	addr := ble.NormalizeAddress(adv.Address)

	if d, ok := r.static[addr]; ok {
		name := d.Name
		if name == "" {
			name = adv.Name
		}
		if name == "" {
			return Identity{}, fmt.Errorf("%w: %s", ErrNoName, addr)
		}
		return Identity{ID: d.ID, Name: name}, nil
	}

	if !r.allowUnknown {
		return Identity{}, fmt.Errorf("%w: %s", ErrUnknownPeripheral, addr)
	}
	if adv.Name == "" {
		return Identity{}, fmt.Errorf("%w: %s", ErrNoName, addr)
	}
	return Identity{ID: GeneratedID(addr), Name: adv.Name}, nil
}

// GeneratedID derives a device id from a MAC address:
// "A4:C1:38:00:00:01" becomes "bthome-a4c138000001".
func GeneratedID(address string) string {
	var b strings.Builder
	b.WriteString(GeneratedIDPrefix)
	for _, r := range ble.NormalizeAddress(address) {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
