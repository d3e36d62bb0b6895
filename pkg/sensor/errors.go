package sensor

import (
	"errors"
	"fmt"
)

// ErrShortTransfer is wrapped when the bus moved fewer bytes than requested.
var ErrShortTransfer = errors.New("short transfer")

type ChannelOpenError struct {
	Bus string
	Err error
}

func (e *ChannelOpenError) Error() string {
	return fmt.Sprintf("open bus %s: %v", e.Bus, e.Err)
}

func (e *ChannelOpenError) Unwrap() error { return e.Err }

// ChannelCloseError reports a channel that failed to release after an
// otherwise successful operation. The operation's result is discarded.
type ChannelCloseError struct {
	Err error
}

func (e *ChannelCloseError) Error() string {
	return fmt.Sprintf("close bus: %v", e.Err)
}

func (e *ChannelCloseError) Unwrap() error { return e.Err }

type DeviceBindError struct {
	Addr uint16
	Err  error
}

func (e *DeviceBindError) Error() string {
	return fmt.Sprintf("bind device 0x%02X: %v", e.Addr, e.Err)
}

func (e *DeviceBindError) Unwrap() error { return e.Err }

// WriteError reports a failed configuration register write.
type WriteError struct {
	Register Register
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write register %s: %v", e.Register, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ReadStage identifies which half of a burst read failed.
type ReadStage int

const (
	StageCursor ReadStage = iota // selecting the first data register
	StageBurst                   // reading the data registers
)

func (s ReadStage) String() string {
	switch s {
	case StageCursor:
		return "cursor"
	case StageBurst:
		return "burst"
	default:
		return fmt.Sprintf("ReadStage(%d)", int(s))
	}
}

type ReadError struct {
	Stage ReadStage
	Err   error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read sample (%s): %v", e.Stage, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

func shortTransfer(got, want int) error {
	return fmt.Errorf("%w: %d of %d bytes", ErrShortTransfer, got, want)
}
