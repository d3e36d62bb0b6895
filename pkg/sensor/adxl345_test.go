package sensor

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/ericogr/adxl345-to-mqtt/pkg/bus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		low, high byte
		want      int16
	}{
		{0x00, 0x00, 0},
		{0xFF, 0xFF, -1},
		{0x00, 0x02, 512},
		{0x01, 0x00, 1},
		{0xFF, 0x01, 511},
		{0x00, 0xFE, -512},
		{0xFF, 0x7F, 32767},
		{0x00, 0x80, -32768},
	}
	for _, tt := range tests {
		if got := decode(tt.low, tt.high); got != tt.want {
			t.Fatalf("decode(%#02x, %#02x) = %d; want %d", tt.low, tt.high, got, tt.want)
		}
	}
}

// playbackOpener hands out one playback bus per Open call.
func playbackOpener(sessions ...[]i2ctest.IO) (*bus.PeriphOpener, *int) {
	opened := 0
	return bus.NewBusOpener("playback", func() (i2c.BusCloser, error) {
		if opened >= len(sessions) {
			return nil, errors.New("no more sessions")
		}
		pb := &i2ctest.Playback{Ops: sessions[opened], DontPanic: true}
		opened++
		return pb, nil
	}), &opened
}

func TestInitWritesConfigurationTable(t *testing.T) {
	o, opened := playbackOpener([]i2ctest.IO{
		{Addr: DefaultAddress, W: []byte{0x2C, 0x0A}},
		{Addr: DefaultAddress, W: []byte{0x31, 0x08}},
		{Addr: DefaultAddress, W: []byte{0x2D, 0x08}},
	})
	s := New(o, DefaultAddress, 0)
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if *opened != 1 {
		t.Fatalf("opened %d channels; want 1", *opened)
	}
}

func TestReadDecodesBurst(t *testing.T) {
	o, _ := playbackOpener([]i2ctest.IO{
		{Addr: DefaultAddress, W: []byte{0x32}},
		{Addr: DefaultAddress, R: []byte{0x00, 0x02, 0x00, 0x00, 0xFF, 0xFF}},
	})
	s := New(o, DefaultAddress, 0)
	got, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.X != 512 || got.Y != 0 || got.Z != -1 {
		t.Fatalf("sample: got %v; want X:512 Y:0 Z:-1", got)
	}
	if got.Timestamp.IsZero() {
		t.Fatalf("sample timestamp not set")
	}
}

func TestInitThenReadUseSeparateChannels(t *testing.T) {
	o, opened := playbackOpener(
		[]i2ctest.IO{
			{Addr: 0x1D, W: []byte{0x2C, 0x0A}},
			{Addr: 0x1D, W: []byte{0x31, 0x08}},
			{Addr: 0x1D, W: []byte{0x2D, 0x08}},
		},
		[]i2ctest.IO{
			{Addr: 0x1D, W: []byte{0x32}},
			{Addr: 0x1D, R: []byte{0x10, 0x00, 0xF0, 0xFF, 0x00, 0x01}},
		},
	)
	s := New(o, 0x1D, 0)
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	got, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.X != 16 || got.Y != -16 || got.Z != 256 {
		t.Fatalf("sample: got %v", got)
	}
	if *opened != 2 {
		t.Fatalf("opened %d channels; want 2", *opened)
	}
}

// fakeChannel is a scripted bus channel.
type fakeChannel struct {
	bindErr  error
	failW    int // 1-based index of the write that fails, 0 for none
	writeErr error
	shortW   int // 1-based index of the write that is acknowledged short
	data     []byte
	readN    int // bytes returned by Read, -1 for len(data)
	readErr  error
	closeErr error

	bound  uint16
	writes [][]byte
	reads  int
	closed bool
}

func healthyChannel(data ...byte) *fakeChannel {
	return &fakeChannel{data: data, readN: -1}
}

func (c *fakeChannel) Bind(addr uint16) error {
	if c.bindErr != nil {
		return c.bindErr
	}
	c.bound = addr
	return nil
}

func (c *fakeChannel) Write(b []byte) (int, error) {
	c.writes = append(c.writes, append([]byte(nil), b...))
	i := len(c.writes)
	if i == c.failW {
		return 0, c.writeErr
	}
	if i == c.shortW {
		return len(b) - 1, nil
	}
	return len(b), nil
}

func (c *fakeChannel) Read(b []byte) (int, error) {
	c.reads++
	if c.readErr != nil {
		return 0, c.readErr
	}
	n := c.readN
	if n < 0 {
		n = len(c.data)
	}
	return copy(b, c.data[:n]), nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return c.closeErr
}

type fakeOpener struct {
	openErr  error
	channels []*fakeChannel
	opened   int
}

func (o *fakeOpener) String() string { return "fake" }

func (o *fakeOpener) Open() (bus.Channel, error) {
	if o.openErr != nil {
		err := o.openErr
		o.openErr = nil
		return nil, err
	}
	c := o.channels[o.opened]
	o.opened++
	return c, nil
}

func TestInitWriteOrder(t *testing.T) {
	c := healthyChannel()
	s := New(&fakeOpener{channels: []*fakeChannel{c}}, DefaultAddress, 0)
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	want := [][]byte{{0x2C, 0x0A}, {0x31, 0x08}, {0x2D, 0x08}}
	if len(c.writes) != len(want) {
		t.Fatalf("writes: got %d want %d", len(c.writes), len(want))
	}
	for i := range want {
		if !bytes.Equal(c.writes[i], want[i]) {
			t.Fatalf("write %d: got % X want % X", i, c.writes[i], want[i])
		}
	}
	if c.bound != DefaultAddress {
		t.Fatalf("bound address: got %#x", c.bound)
	}
	if c.reads != 0 {
		t.Fatalf("Init must not read, got %d reads", c.reads)
	}
	if !c.closed {
		t.Fatalf("channel not released")
	}
}

func TestInitSettleDelay(t *testing.T) {
	s := New(&fakeOpener{channels: []*fakeChannel{healthyChannel()}}, DefaultAddress, time.Second)
	var slept time.Duration
	s.sleep = func(d time.Duration) { slept += d }
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if slept != time.Second {
		t.Fatalf("settle: got %v want 1s", slept)
	}
}

func TestReadTransactions(t *testing.T) {
	c := healthyChannel(0x00, 0x02, 0x00, 0x00, 0xFF, 0xFF)
	s := New(&fakeOpener{channels: []*fakeChannel{c}}, DefaultAddress, 0)
	got, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(c.writes) != 1 || !bytes.Equal(c.writes[0], []byte{0x32}) {
		t.Fatalf("cursor writes: % X", c.writes)
	}
	if c.reads != 1 {
		t.Fatalf("reads: got %d want 1", c.reads)
	}
	if got.X != 512 || got.Y != 0 || got.Z != -1 {
		t.Fatalf("sample: got %v", got)
	}
	if !c.closed {
		t.Fatalf("channel not released")
	}
}

func TestInitFailures(t *testing.T) {
	errBus := errors.New("bus error")
	tests := []struct {
		name   string
		opener *fakeOpener
		check  func(t *testing.T, err error)
	}{
		{
			name:   "open",
			opener: &fakeOpener{openErr: errBus},
			check: func(t *testing.T, err error) {
				var e *ChannelOpenError
				if !errors.As(err, &e) || !errors.Is(err, errBus) {
					t.Fatalf("want ChannelOpenError, got %v", err)
				}
			},
		},
		{
			name:   "bind",
			opener: &fakeOpener{channels: []*fakeChannel{{bindErr: errBus}}},
			check: func(t *testing.T, err error) {
				var e *DeviceBindError
				if !errors.As(err, &e) || e.Addr != DefaultAddress {
					t.Fatalf("want DeviceBindError, got %v", err)
				}
			},
		},
		{
			name:   "write data format",
			opener: &fakeOpener{channels: []*fakeChannel{{failW: 2, writeErr: errBus}}},
			check: func(t *testing.T, err error) {
				var e *WriteError
				if !errors.As(err, &e) || e.Register != RegDataFormat {
					t.Fatalf("want WriteError(DATA_FORMAT), got %v", err)
				}
			},
		},
		{
			name:   "short write power ctl",
			opener: &fakeOpener{channels: []*fakeChannel{{shortW: 3}}},
			check: func(t *testing.T, err error) {
				var e *WriteError
				if !errors.As(err, &e) || e.Register != RegPowerCtl || !errors.Is(err, ErrShortTransfer) {
					t.Fatalf("want short WriteError(POWER_CTL), got %v", err)
				}
			},
		},
		{
			name:   "close after configuration",
			opener: &fakeOpener{channels: []*fakeChannel{{closeErr: errBus}}},
			check: func(t *testing.T, err error) {
				var e *ChannelCloseError
				if !errors.As(err, &e) || !errors.Is(err, errBus) {
					t.Fatalf("want ChannelCloseError, got %v", err)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := healthyChannel()
			tt.opener.channels = append(tt.opener.channels, next)
			s := New(tt.opener, DefaultAddress, 0)
			err := s.Init()
			if err == nil {
				t.Fatalf("expected error")
			}
			tt.check(t, err)
			for _, c := range tt.opener.channels[:tt.opener.opened] {
				if !c.closed {
					t.Fatalf("channel leaked after %s failure", tt.name)
				}
			}
			// a later call gets a fresh channel and succeeds
			if err := s.Init(); err != nil {
				t.Fatalf("Init after failure: %v", err)
			}
			if len(next.writes) != len(InitSequence) {
				t.Fatalf("fresh channel writes: %d", len(next.writes))
			}
		})
	}
}

func TestReadFailures(t *testing.T) {
	errBus := errors.New("bus error")
	data := []byte{0x00, 0x02, 0x00, 0x00, 0xFF, 0xFF}
	tests := []struct {
		name   string
		opener *fakeOpener
		check  func(t *testing.T, err error)
	}{
		{
			name:   "open",
			opener: &fakeOpener{openErr: errBus},
			check: func(t *testing.T, err error) {
				var e *ChannelOpenError
				if !errors.As(err, &e) {
					t.Fatalf("want ChannelOpenError, got %v", err)
				}
			},
		},
		{
			name:   "bind",
			opener: &fakeOpener{channels: []*fakeChannel{{bindErr: errBus}}},
			check: func(t *testing.T, err error) {
				var e *DeviceBindError
				if !errors.As(err, &e) {
					t.Fatalf("want DeviceBindError, got %v", err)
				}
			},
		},
		{
			name:   "cursor",
			opener: &fakeOpener{channels: []*fakeChannel{{failW: 1, writeErr: errBus}}},
			check: func(t *testing.T, err error) {
				var e *ReadError
				if !errors.As(err, &e) || e.Stage != StageCursor {
					t.Fatalf("want cursor ReadError, got %v", err)
				}
			},
		},
		{
			name:   "burst",
			opener: &fakeOpener{channels: []*fakeChannel{{readErr: errBus}}},
			check: func(t *testing.T, err error) {
				var e *ReadError
				if !errors.As(err, &e) || e.Stage != StageBurst || !errors.Is(err, errBus) {
					t.Fatalf("want burst ReadError, got %v", err)
				}
			},
		},
		{
			name:   "short burst",
			opener: &fakeOpener{channels: []*fakeChannel{{data: data, readN: 4}}},
			check: func(t *testing.T, err error) {
				var e *ReadError
				if !errors.As(err, &e) || e.Stage != StageBurst || !errors.Is(err, ErrShortTransfer) {
					t.Fatalf("want short burst ReadError, got %v", err)
				}
			},
		},
		{
			name:   "close after full burst",
			opener: &fakeOpener{channels: []*fakeChannel{{data: data, readN: -1, closeErr: errBus}}},
			check: func(t *testing.T, err error) {
				var e *ChannelCloseError
				if !errors.As(err, &e) || !errors.Is(err, errBus) {
					t.Fatalf("want ChannelCloseError, got %v", err)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opener.channels = append(tt.opener.channels, healthyChannel(data...))
			s := New(tt.opener, DefaultAddress, 0)
			got, err := s.Read()
			if err == nil {
				t.Fatalf("expected error")
			}
			if got != (Sample{}) {
				t.Fatalf("partial sample returned: %v", got)
			}
			tt.check(t, err)
			got, err = s.Read()
			if err != nil {
				t.Fatalf("Read after failure: %v", err)
			}
			if got.X != 512 || got.Y != 0 || got.Z != -1 {
				t.Fatalf("sample after failure: %v", got)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	err := &WriteError{Register: RegBWRate, Err: errors.New("nack")}
	if got := err.Error(); got != "write register BW_RATE: nack" {
		t.Fatalf("message: %q", got)
	}
	rerr := &ReadError{Stage: StageCursor, Err: errors.New("nack")}
	if got := rerr.Error(); got != "read sample (cursor): nack" {
		t.Fatalf("message: %q", got)
	}
	cerr := &ChannelCloseError{Err: errors.New("ebadf")}
	if got := cerr.Error(); got != "close bus: ebadf" {
		t.Fatalf("message: %q", got)
	}
}
