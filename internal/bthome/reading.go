package bthome

import "fmt"

// Reading is one decoded sensor value.
//
// The set of readings is closed: Battery, Temperature, Humidity, Voltage and
// Power are the only implementations.
type Reading interface {
	isReading()
	fmt.Stringer
}

// Battery is the battery level in percent.
type Battery float32

// Temperature is in degrees Celsius.
type Temperature float32

// Humidity is relative humidity in percent.
type Humidity float32

// Voltage is in volts.
type Voltage float32

// Power reports whether the device is powered on.
type Power bool

func (Battery) isReading()     {}
func (Temperature) isReading() {}
func (Humidity) isReading()    {}
func (Voltage) isReading()     {}
func (Power) isReading()       {}

func (b Battery) String() string     { return fmt.Sprintf("Battery(%g)", float32(b)) }
func (t Temperature) String() string { return fmt.Sprintf("Temperature(%g)", float32(t)) }
func (h Humidity) String() string    { return fmt.Sprintf("Humidity(%g)", float32(h)) }
func (v Voltage) String() string     { return fmt.Sprintf("Voltage(%g)", float32(v)) }
func (p Power) String() string       { return fmt.Sprintf("Power(%t)", bool(p)) }
