package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ericogr/adxl345-to-mqtt/pkg/config"
	"github.com/ericogr/adxl345-to-mqtt/pkg/output"
	"github.com/ericogr/adxl345-to-mqtt/pkg/output/console"
	"github.com/ericogr/adxl345-to-mqtt/pkg/output/mqtt"
	"github.com/ericogr/adxl345-to-mqtt/pkg/runner"
	"github.com/ericogr/adxl345-to-mqtt/pkg/sensor"
)

func main() {
	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	s, err := newSensor(cfg)
	if err != nil {
		log.Fatalf("sensor: %v", err)
	}
	defer s.Close()

	entries, err := initOutputs(cfg)
	if err != nil {
		log.Fatalf("outputs: %v", err)
	}
	defer closeOutputs(entries)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("starting %s sensor on bus %s addr 0x%02X", cfg.SensorType, cfg.I2CBus, cfg.I2CAddress)
	if err := runner.New(s, entries, runner.OptionsFromConfig(cfg)).Run(ctx); err != nil {
		// log.Fatalf skips deferred calls
		closeOutputs(entries)
		_ = s.Close()
		log.Fatalf("run: %v", err)
	}
	log.Printf("stopped")
}

func newSensor(cfg config.Config) (sensor.Sensor, error) {
	switch cfg.SensorType {
	case config.SensorSimulation:
		return sensor.NewFakeSensor(cfg)
	default:
		return sensor.NewADXL345Sensor(cfg)
	}
}

// initOutputs builds the configured outputs. An output without its own
// interval publishes every sample.
func initOutputs(cfg config.Config) ([]*output.Entry, error) {
	entries := make([]*output.Entry, 0, len(cfg.Outputs))
	for _, oc := range cfg.Outputs {
		var o output.Output
		switch strings.ToLower(oc.Type) {
		case "console":
			o = console.NewConsole()
		case "mqtt":
			mc := config.MQTTConfig{}
			if oc.MQTT != nil {
				mc = *oc.MQTT
			}
			m, err := mqtt.NewMQTT(mc)
			if err != nil {
				closeOutputs(entries)
				return nil, err
			}
			o = m
		default:
			closeOutputs(entries)
			return nil, fmt.Errorf("unknown output type %q", oc.Type)
		}
		entries = append(entries, &output.Entry{Type: oc.Type, Output: o, IntervalMs: oc.IntervalMs})
	}
	return entries, nil
}

func closeOutputs(entries []*output.Entry) {
	for _, e := range entries {
		if err := e.Output.Close(); err != nil {
			log.Printf("%s close error: %v", e.Type, err)
		}
	}
}
