package sensor

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/ericogr/adxl345-to-mqtt/pkg/config"
)

// oneG is 1 g in full-resolution counts.
const oneG = 256

// FakeSensor simulates a device lying flat: ~0 g on X/Y and ~1 g on Z with
// a little noise.
type FakeSensor struct {
	mu          sync.Mutex
	noise       int
	initialized bool
}

func NewFakeSensor(cfg config.Config) (Sensor, error) {
	return &FakeSensor{noise: 8}, nil
}

func (f *FakeSensor) Init() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialized = true
	return nil
}

func (f *FakeSensor) Read() (Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.initialized {
		return Sample{}, errors.New("fake sensor not initialized")
	}
	// 10-bit range in full resolution at ±2g
	jitter := func(center int) int16 {
		v := center + rand.Intn(2*f.noise+1) - f.noise
		if v > 511 {
			v = 511
		}
		if v < -512 {
			v = -512
		}
		return int16(v)
	}
	return Sample{X: jitter(0), Y: jitter(0), Z: jitter(oneG), Timestamp: time.Now()}, nil
}

func (f *FakeSensor) Close() error { return nil }
