//go:build linux

package bus

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

// A regular file stands in for /dev/i2c-N: reads and writes go through the
// same syscalls, and the I2C_SLAVE ioctl is rejected with ENOTTY.
func TestDevChannelOnRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "i2c-9")
	if err := os.WriteFile(path, []byte{0x00, 0x02, 0xFF}, 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := NewDevOpener(path).Open()
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	err = c.Bind(0x53)
	if err == nil {
		t.Fatalf("expected ioctl error on a regular file")
	}
	if !errors.Is(err, unix.ENOTTY) {
		t.Fatalf("bind: got %v; want wrapped ENOTTY", err)
	}

	buf := make([]byte, 6)
	n, err := c.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 3 || !bytes.Equal(buf[:n], []byte{0x00, 0x02, 0xFF}) {
		t.Fatalf("read: n=%d buf=% X; want the 3 bytes in the file", n, buf)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestDevChannelBindRejectsTenBit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "i2c-9")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := NewDevOpener(path).Open()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()
	err = c.Bind(0x153)
	if err == nil || errors.Is(err, unix.ENOTTY) {
		t.Fatalf("bind: got %v; want address check before ioctl", err)
	}
}

func TestDevWriteCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "i2c-9")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := NewDevOpener(path).Open()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if n, err := c.Write([]byte{0x2D, 0x08}); err != nil || n != 2 {
		t.Fatalf("write: n=%d err=%v", n, err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0x2D, 0x08}) {
		t.Fatalf("file contents: % X", got)
	}
}

func TestDevOpenMissingDevice(t *testing.T) {
	if _, err := NewDevOpener(filepath.Join(t.TempDir(), "missing")).Open(); err == nil {
		t.Fatalf("expected error opening a missing device")
	}
}
