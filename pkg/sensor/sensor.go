package sensor

import (
	"fmt"
	"time"
)

// Sample is one acceleration reading in raw device counts.
type Sample struct {
	X         int16     `json:"x"`
	Y         int16     `json:"y"`
	Z         int16     `json:"z"`
	Timestamp time.Time `json:"timestamp"`
}

// ScaleFullRes is the sensitivity in g/LSB with DATA_FORMAT FULL_RES set.
const ScaleFullRes = 0.0039

// G returns the sample converted to g.
func (s Sample) G() (x, y, z float64) {
	return float64(s.X) * ScaleFullRes, float64(s.Y) * ScaleFullRes, float64(s.Z) * ScaleFullRes
}

func (s Sample) String() string {
	return fmt.Sprintf("X:%d Y:%d Z:%d", s.X, s.Y, s.Z)
}

type Sensor interface {
	Init() error
	Read() (Sample, error)
	Close() error
}
