package console

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ericogr/adxl345-to-mqtt/pkg/output"
	"github.com/ericogr/adxl345-to-mqtt/pkg/sensor"
)

type ConsoleOutput struct {
	w io.Writer
}

func NewConsole() output.Output { return &ConsoleOutput{w: os.Stdout} }

func (c *ConsoleOutput) Publish(s sensor.Sample) error {
	_, err := fmt.Fprintf(c.w, "%s x=%d y=%d z=%d\n", s.Timestamp.Format(time.RFC3339), s.X, s.Y, s.Z)
	return err
}

func (c *ConsoleOutput) Close() error { return nil }
