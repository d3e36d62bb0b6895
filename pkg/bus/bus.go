// Package bus provides scoped access to an I²C bus channel.
//
// A Channel is acquired with Opener.Open, bound to one device address and
// released with Close. Callers are expected to open a fresh channel for every
// operation and never share it.
package bus

import (
	"fmt"
	"strings"
)

// Channel is an exclusively owned, open bus channel.
type Channel interface {
	// Bind selects the 7-bit device address used by later Write and Read calls.
	Bind(addr uint16) error
	// Write sends b as one write transaction and reports how many bytes the
	// bus acknowledged.
	Write(b []byte) (int, error)
	// Read fills b from one read transaction and reports how many bytes were
	// received.
	Read(b []byte) (int, error)
	Close() error
}

// Opener acquires channels on one bus.
type Opener interface {
	Open() (Channel, error)
	String() string
}

const (
	DriverPeriph = "periph"
	DriverI2CDev = "i2cdev"
)

// MaxAddress is the highest 7-bit device address.
const MaxAddress = 0x7F

// NewOpener returns the opener for the named backend.
func NewOpener(driver, busName string) (Opener, error) {
	switch strings.ToLower(driver) {
	case "", DriverPeriph:
		return NewPeriphOpener(busName)
	case DriverI2CDev:
		return NewDevOpener(DevicePath(busName)), nil
	default:
		return nil, fmt.Errorf("unknown bus driver %q", driver)
	}
}

// DevicePath maps a bus name such as "2" to its character device
// (/dev/i2c-2). Absolute paths are returned unchanged.
func DevicePath(busName string) string {
	if strings.HasPrefix(busName, "/") {
		return busName
	}
	return "/dev/i2c-" + strings.TrimPrefix(busName, "i2c-")
}

func checkAddress(addr uint16) error {
	if addr > MaxAddress {
		return fmt.Errorf("address 0x%02X is not a 7-bit address", addr)
	}
	return nil
}
