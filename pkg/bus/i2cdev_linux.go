//go:build linux

package bus

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ioctl request selecting the slave address on an i2c-dev file descriptor.
const i2cSlave = 0x0703

// DevOpener opens an i2c-dev character device directly.
type DevOpener struct {
	path string
}

func NewDevOpener(path string) *DevOpener {
	return &DevOpener{path: path}
}

func (o *DevOpener) String() string { return o.path }

func (o *DevOpener) Open() (Channel, error) {
	f, err := os.OpenFile(o.path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &devChannel{f: f}, nil
}

type devChannel struct {
	f *os.File
}

func (c *devChannel) Bind(addr uint16) error {
	if err := checkAddress(addr); err != nil {
		return err
	}
	if err := unix.IoctlSetInt(int(c.f.Fd()), i2cSlave, int(addr)); err != nil {
		return fmt.Errorf("ioctl I2C_SLAVE: %w", err)
	}
	return nil
}

func (c *devChannel) Write(b []byte) (int, error) {
	return unix.Write(int(c.f.Fd()), b)
}

func (c *devChannel) Read(b []byte) (int, error) {
	return unix.Read(int(c.f.Fd()), b)
}

func (c *devChannel) Close() error {
	return c.f.Close()
}
