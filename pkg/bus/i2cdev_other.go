//go:build !linux

package bus

import "errors"

// DevOpener is only functional on Linux.
type DevOpener struct {
	path string
}

func NewDevOpener(path string) *DevOpener {
	return &DevOpener{path: path}
}

func (o *DevOpener) String() string { return o.path }

func (o *DevOpener) Open() (Channel, error) {
	return nil, errors.New("i2c-dev is only supported on linux")
}
