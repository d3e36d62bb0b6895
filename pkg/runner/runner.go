// Package runner drives a sensor through its lifecycle: one Init, then a
// read-emit-wait cycle until the context is cancelled or a read failure is
// configured to be fatal.
package runner

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ericogr/adxl345-to-mqtt/pkg/config"
	"github.com/ericogr/adxl345-to-mqtt/pkg/output"
	"github.com/ericogr/adxl345-to-mqtt/pkg/sensor"
)

type State int

const (
	Uninitialized State = iota
	Initialized
	Sampling
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Sampling:
		return "sampling"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ReadPolicy decides what happens after a failed read.
type ReadPolicy string

const (
	SkipOnError ReadPolicy = config.OnReadErrorSkip
	StopOnError ReadPolicy = config.OnReadErrorStop
)

type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
	OnReadError  ReadPolicy
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Interval:     time.Duration(cfg.IntervalMs) * time.Millisecond,
		StartupDelay: time.Duration(cfg.StartupDelayMs) * time.Millisecond,
		OnReadError:  ReadPolicy(cfg.OnReadError),
	}
}

type Runner struct {
	sensor  sensor.Sensor
	outputs []*output.Entry
	opts    Options

	mu    sync.Mutex
	state State

	// wait blocks for d or until ctx is done.
	wait func(ctx context.Context, d time.Duration) error
}

func New(s sensor.Sensor, outputs []*output.Entry, opts Options) *Runner {
	return &Runner{sensor: s, outputs: outputs, opts: opts, wait: sleep}
}

func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run initializes the sensor and samples until ctx is cancelled. An Init
// failure is returned without sampling. With StopOnError the first read
// failure is returned; otherwise it is logged and the cycle continues.
// Cancellation returns nil.
func (r *Runner) Run(ctx context.Context) error {
	defer r.setState(Stopped)

	if err := r.sensor.Init(); err != nil {
		return fmt.Errorf("init sensor: %w", err)
	}
	r.setState(Initialized)

	if err := r.wait(ctx, r.opts.StartupDelay); err != nil {
		return nil
	}
	r.setState(Sampling)
	for {
		s, err := r.sensor.Read()
		if err != nil {
			if r.opts.OnReadError == StopOnError {
				return fmt.Errorf("read sensor: %w", err)
			}
			log.Printf("read error: %v", err)
		} else {
			r.emit(s)
		}
		if err := r.wait(ctx, r.opts.Interval); err != nil {
			return nil
		}
	}
}

func (r *Runner) emit(s sensor.Sample) {
	now := s.Timestamp
	if now.IsZero() {
		now = time.Now()
	}
	for _, e := range r.outputs {
		if !e.Due(now) {
			continue
		}
		if err := e.Output.Publish(s); err != nil {
			log.Printf("%s publish error: %v", e.Type, err)
			continue
		}
		e.Published(now)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
