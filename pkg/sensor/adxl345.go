package sensor

import (
	"fmt"
	"time"

	"github.com/ericogr/adxl345-to-mqtt/pkg/bus"
	"github.com/ericogr/adxl345-to-mqtt/pkg/config"
)

// DefaultAddress is the ADXL345 address with ALT ADDRESS tied low.
const DefaultAddress = 0x53

// Register is an ADXL345 register offset.
type Register byte

const (
	RegBWRate     Register = 0x2C // data rate and power mode
	RegPowerCtl   Register = 0x2D // power-saving features
	RegDataFormat Register = 0x31 // data format
	RegDataX0     Register = 0x32
	RegDataX1     Register = 0x33
	RegDataY0     Register = 0x34
	RegDataY1     Register = 0x35
	RegDataZ0     Register = 0x36
	RegDataZ1     Register = 0x37
)

func (r Register) String() string {
	switch r {
	case RegBWRate:
		return "BW_RATE"
	case RegPowerCtl:
		return "POWER_CTL"
	case RegDataFormat:
		return "DATA_FORMAT"
	case RegDataX0:
		return "DATAX0"
	case RegDataX1:
		return "DATAX1"
	case RegDataY0:
		return "DATAY0"
	case RegDataY1:
		return "DATAY1"
	case RegDataZ0:
		return "DATAZ0"
	case RegDataZ1:
		return "DATAZ1"
	default:
		return fmt.Sprintf("0x%02X", byte(r))
	}
}

const (
	bwRate100Hz       = 0x0A // 100 Hz output data rate, normal power
	dataFormatFullRes = 0x08 // FULL_RES, ±2g, right justified
	powerCtlMeasure   = 0x08 // measurement mode
)

// dataLen is the number of data registers read per sample.
const dataLen = 6

// RegisterWrite is one (register, value) pair of the configuration table.
type RegisterWrite struct {
	Register Register
	Value    byte
}

// InitSequence is written in order by Init. After it the device measures
// continuously in full-resolution mode.
var InitSequence = []RegisterWrite{
	{RegBWRate, bwRate100Hz},
	{RegDataFormat, dataFormatFullRes},
	{RegPowerCtl, powerCtlMeasure},
}

// ADXL345Sensor drives the accelerometer. Each operation acquires its own bus
// channel and releases it before returning.
type ADXL345Sensor struct {
	opener bus.Opener
	addr   uint16
	settle time.Duration
	sleep  func(time.Duration)
}

func NewADXL345Sensor(cfg config.Config) (Sensor, error) {
	opener, err := bus.NewOpener(cfg.BusDriver, cfg.I2CBus)
	if err != nil {
		return nil, err
	}
	return New(opener, uint16(cfg.I2CAddress), time.Duration(cfg.SettleMs)*time.Millisecond), nil
}

// New returns a driver for the device at addr reachable through opener.
// settle is waited after the configuration writes of Init.
func New(opener bus.Opener, addr uint16, settle time.Duration) *ADXL345Sensor {
	return &ADXL345Sensor{opener: opener, addr: addr, settle: settle, sleep: time.Sleep}
}

func (s *ADXL345Sensor) String() string {
	return fmt.Sprintf("ADXL345{bus:%s addr:0x%02X}", s.opener, s.addr)
}

// Init writes InitSequence to the device.
func (s *ADXL345Sensor) Init() (err error) {
	ch, err := s.acquire()
	if err != nil {
		return err
	}
	defer release(ch, &err)

	for _, w := range InitSequence {
		n, err := ch.Write([]byte{byte(w.Register), w.Value})
		if err != nil {
			return &WriteError{Register: w.Register, Err: err}
		}
		if n != 2 {
			return &WriteError{Register: w.Register, Err: shortTransfer(n, 2)}
		}
	}
	if s.settle > 0 {
		s.sleep(s.settle)
	}
	return nil
}

// Read performs one burst read of the data registers. No sample is returned
// on error.
func (s *ADXL345Sensor) Read() (sample Sample, err error) {
	ch, err := s.acquire()
	if err != nil {
		return Sample{}, err
	}
	defer func() {
		release(ch, &err)
		if err != nil {
			sample = Sample{}
		}
	}()

	n, err := ch.Write([]byte{byte(RegDataX0)})
	if err != nil {
		return Sample{}, &ReadError{Stage: StageCursor, Err: err}
	}
	if n != 1 {
		return Sample{}, &ReadError{Stage: StageCursor, Err: shortTransfer(n, 1)}
	}
	buf := make([]byte, dataLen)
	n, err = ch.Read(buf)
	if err != nil {
		return Sample{}, &ReadError{Stage: StageBurst, Err: err}
	}
	if n != dataLen {
		return Sample{}, &ReadError{Stage: StageBurst, Err: shortTransfer(n, dataLen)}
	}
	sample = decodeSample(buf)
	sample.Timestamp = time.Now()
	return sample, nil
}

// Close is a no-op: no channel outlives a single operation.
func (s *ADXL345Sensor) Close() error { return nil }

func (s *ADXL345Sensor) acquire() (bus.Channel, error) {
	ch, err := s.opener.Open()
	if err != nil {
		return nil, &ChannelOpenError{Bus: s.opener.String(), Err: err}
	}
	if err := ch.Bind(s.addr); err != nil {
		_ = ch.Close()
		return nil, &DeviceBindError{Addr: s.addr, Err: err}
	}
	return ch, nil
}

// release closes ch and reports the close error only if the operation itself
// succeeded.
func release(ch bus.Channel, err *error) {
	if cerr := ch.Close(); cerr != nil && *err == nil {
		*err = &ChannelCloseError{Err: cerr}
	}
}
