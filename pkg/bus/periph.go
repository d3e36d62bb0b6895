package bus

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// PeriphOpener opens buses through the periph.io registry.
type PeriphOpener struct {
	name string
	open func(name string) (i2c.BusCloser, error)
}

// NewPeriphOpener initializes the periph host drivers and returns an opener
// for the named bus ("" selects the first registered bus).
func NewPeriphOpener(name string) (*PeriphOpener, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	return &PeriphOpener{name: name, open: i2creg.Open}, nil
}

// NewBusOpener wraps an already constructed bus factory, for instance an
// i2ctest.Playback in tests.
func NewBusOpener(name string, open func() (i2c.BusCloser, error)) *PeriphOpener {
	return &PeriphOpener{name: name, open: func(string) (i2c.BusCloser, error) { return open() }}
}

func (o *PeriphOpener) String() string {
	return fmt.Sprintf("periph(%s)", o.name)
}

func (o *PeriphOpener) Open() (Channel, error) {
	b, err := o.open(o.name)
	if err != nil {
		return nil, fmt.Errorf("open i2c %q: %w", o.name, err)
	}
	return &periphChannel{bus: b}, nil
}

type periphChannel struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

var errNotBound = errors.New("channel not bound to a device address")

func (c *periphChannel) Bind(addr uint16) error {
	if err := checkAddress(addr); err != nil {
		return err
	}
	c.dev = &i2c.Dev{Addr: addr, Bus: c.bus}
	return nil
}

func (c *periphChannel) Write(b []byte) (int, error) {
	if c.dev == nil {
		return 0, errNotBound
	}
	if err := c.dev.Tx(b, nil); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *periphChannel) Read(b []byte) (int, error) {
	if c.dev == nil {
		return 0, errNotBound
	}
	if err := c.dev.Tx(nil, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *periphChannel) Close() error {
	c.dev = nil
	return c.bus.Close()
}
