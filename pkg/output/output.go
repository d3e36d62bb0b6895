package output

import (
	"time"

	"github.com/ericogr/adxl345-to-mqtt/pkg/sensor"
)

type Output interface {
	Publish(sensor.Sample) error
	Close() error
}

// Entry is a configured output with its own publish interval. An interval of
// zero publishes every sample.
type Entry struct {
	Type       string
	Output     Output
	IntervalMs int
	last       time.Time
}

// Due reports whether the entry should publish a sample taken at now.
func (e *Entry) Due(now time.Time) bool {
	if e.IntervalMs <= 0 || e.last.IsZero() {
		return true
	}
	return now.Sub(e.last) >= time.Duration(e.IntervalMs)*time.Millisecond
}

func (e *Entry) Published(now time.Time) { e.last = now }

// helper constructors are in subpackages
