package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	SensorReal       = "real"
	SensorSimulation = "simulation"

	OnReadErrorSkip = "skip"
	OnReadErrorStop = "stop"
)

type MQTTConfig struct {
	Server            string `json:"server" yaml:"server"`
	Username          string `json:"username" yaml:"username"`
	Password          string `json:"password" yaml:"password"`
	ClientID          string `json:"client_id" yaml:"client_id"`
	StateTopic        string `json:"state_topic" yaml:"state_topic"`
	DiscoveryTopic    string `json:"discovery_topic,omitempty" yaml:"discovery_topic,omitempty"`
	DiscoveryName     string `json:"discovery_name,omitempty" yaml:"discovery_name,omitempty"`
	DiscoveryUniqueID string `json:"discovery_unique_id,omitempty" yaml:"discovery_unique_id,omitempty"`
	PayloadFormat     string `json:"payload_format,omitempty" yaml:"payload_format,omitempty"`
}

type OutputConfig struct {
	Type       string      `json:"type" yaml:"type"`
	IntervalMs int         `json:"interval_ms,omitempty" yaml:"interval_ms,omitempty"`
	MQTT       *MQTTConfig `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
}

type Config struct {
	I2CBus         string         `json:"i2c_bus" yaml:"i2c_bus"`
	I2CAddress     int            `json:"i2c_address" yaml:"i2c_address"`
	BusDriver      string         `json:"bus_driver" yaml:"bus_driver"`
	SensorType     string         `json:"sensor_type" yaml:"sensor_type"`
	IntervalMs     int            `json:"interval_ms" yaml:"interval_ms"`
	SettleMs       int            `json:"settle_ms" yaml:"settle_ms"`
	StartupDelayMs int            `json:"startup_delay_ms" yaml:"startup_delay_ms"`
	OnReadError    string         `json:"on_read_error" yaml:"on_read_error"`
	Outputs        []OutputConfig `json:"outputs" yaml:"outputs"`
}

func DefaultConfig() Config {
	return Config{
		I2CBus:         "2",
		I2CAddress:     0x53,
		BusDriver:      "periph",
		SensorType:     SensorReal,
		IntervalMs:     1000,
		SettleMs:       1000,
		StartupDelayMs: 1,
		OnReadError:    OnReadErrorSkip,
		Outputs:        []OutputConfig{{Type: "console"}},
	}
}

// LoadFromFlags loads configuration from the process command line.
func LoadFromFlags() (Config, error) {
	return LoadFromArgs(os.Args[1:])
}

// LoadFromArgs loads configuration from a JSON or YAML file (optional) and
// flags. Flags override values present in the file.
func LoadFromArgs(args []string) (Config, error) {
	fs := flag.NewFlagSet("adxl345-to-mqtt", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "Path to JSON or YAML config file")
	flagI2CBus := fs.String("i2c-bus", "", "I2C bus (e.g., '2' -> /dev/i2c-2)")
	flagI2CAddStr := fs.String("i2c-address", "", "I2C address (decimal or 0x hex)")
	flagBusDriver := fs.String("bus-driver", "", "bus driver: periph|i2cdev")
	flagSensorType := fs.String("sensor-type", "", "sensor type: real|simulation")
	flagInterval := fs.Int("interval-ms", -1, "Sample interval in ms")
	flagSettle := fs.Int("settle-ms", -1, "Delay after configuring the device in ms")
	flagStartup := fs.Int("startup-delay-ms", -1, "Delay between init and the first sample in ms")
	flagOnReadError := fs.String("on-read-error", "", "read failure policy: skip|stop")
	flagOutputs := fs.String("outputs", "", "Comma-separated outputs (console,mqtt)")
	flagOutputIntervals := fs.String("output-intervals", "", "Comma-separated output intervals e.g. console=1000,mqtt=5000")
	flagMQTTServer := fs.String("mqtt-server", "", "MQTT server (tcp://host:port)")
	flagMQTTUser := fs.String("mqtt-user", "", "MQTT username")
	flagMQTTPass := fs.String("mqtt-pass", "", "MQTT password")
	flagClientID := fs.String("mqtt-client-id", "", "MQTT client id")
	flagTopic := fs.String("mqtt-topic", "", "MQTT state topic")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()

	if *cfgPath != "" {
		if err := loadFile(*cfgPath, &cfg); err != nil {
			return cfg, err
		}
	}

	if *flagI2CBus != "" {
		cfg.I2CBus = *flagI2CBus
	}
	if *flagI2CAddStr != "" {
		v, err := parseIntOrHex(*flagI2CAddStr)
		if err != nil {
			return cfg, fmt.Errorf("i2c-address: %w", err)
		}
		cfg.I2CAddress = v
	}
	if *flagBusDriver != "" {
		cfg.BusDriver = *flagBusDriver
	}
	if *flagSensorType != "" {
		cfg.SensorType = *flagSensorType
	}
	if *flagInterval != -1 {
		cfg.IntervalMs = *flagInterval
	}
	if *flagSettle != -1 {
		cfg.SettleMs = *flagSettle
	}
	if *flagStartup != -1 {
		cfg.StartupDelayMs = *flagStartup
	}
	if *flagOnReadError != "" {
		cfg.OnReadError = *flagOnReadError
	}
	if *flagOutputs != "" {
		parts := parseCSV(*flagOutputs)
		outs := make([]OutputConfig, 0, len(parts))
		for _, p := range parts {
			outs = append(outs, OutputConfig{Type: p})
		}
		cfg.Outputs = outs
	}
	if *flagOutputIntervals != "" {
		intervals, err := parseKeyIntMap(*flagOutputIntervals)
		if err != nil {
			return cfg, fmt.Errorf("output-intervals: %w", err)
		}
		for i := range cfg.Outputs {
			if v, ok := intervals[strings.ToLower(cfg.Outputs[i].Type)]; ok {
				cfg.Outputs[i].IntervalMs = v
			}
		}
	}
	// mqtt flags apply to every mqtt output; one is created if none exists
	if *flagMQTTServer != "" || *flagMQTTUser != "" || *flagMQTTPass != "" || *flagClientID != "" || *flagTopic != "" {
		apply := func(m *MQTTConfig) {
			if *flagMQTTServer != "" {
				m.Server = *flagMQTTServer
			}
			if *flagMQTTUser != "" {
				m.Username = *flagMQTTUser
			}
			if *flagMQTTPass != "" {
				m.Password = *flagMQTTPass
			}
			if *flagClientID != "" {
				m.ClientID = *flagClientID
			}
			if *flagTopic != "" {
				m.StateTopic = *flagTopic
			}
		}
		applied := false
		for i := range cfg.Outputs {
			if strings.ToLower(cfg.Outputs[i].Type) == "mqtt" {
				if cfg.Outputs[i].MQTT == nil {
					cfg.Outputs[i].MQTT = &MQTTConfig{}
				}
				apply(cfg.Outputs[i].MQTT)
				applied = true
			}
		}
		if !applied {
			mqttOut := OutputConfig{Type: "mqtt", MQTT: &MQTTConfig{}}
			apply(mqttOut.MQTT)
			cfg.Outputs = append(cfg.Outputs, mqttOut)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be corrected later on.
func (c Config) Validate() error {
	if c.I2CAddress < 0 || c.I2CAddress > 0x7F {
		return fmt.Errorf("i2c-address 0x%X is not a 7-bit address", c.I2CAddress)
	}
	if c.IntervalMs <= 0 {
		return errors.New("interval-ms must be > 0")
	}
	if c.SettleMs < 0 || c.StartupDelayMs < 0 {
		return errors.New("delays must be >= 0")
	}
	switch c.SensorType {
	case SensorReal, SensorSimulation:
	default:
		return fmt.Errorf("unknown sensor type %q", c.SensorType)
	}
	switch c.OnReadError {
	case OnReadErrorSkip, OnReadErrorStop:
	default:
		return fmt.Errorf("unknown on-read-error policy %q", c.OnReadError)
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	// a file listing outputs replaces the default ones instead of merging
	defaults := cfg.Outputs
	cfg.Outputs = nil
	defer func() {
		if cfg.Outputs == nil {
			cfg.Outputs = defaults
		}
	}()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, cfg)
	default:
		err = json.Unmarshal(b, cfg)
	}
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func parseIntOrHex(s string) (int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseInt(s[2:], 16, 0)
		return int(v), err
	}
	v, err := strconv.Atoi(s)
	return v, err
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseKeyIntMap parses "key=value" pairs such as "console=1000,mqtt=5000".
// Keys are lower-cased.
func parseKeyIntMap(s string) (map[string]int, error) {
	out := map[string]int{}
	for _, p := range parseCSV(s) {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid pair %q", p)
		}
		v, err := strconv.Atoi(strings.TrimSpace(kv[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid value in %q: %w", p, err)
		}
		out[strings.ToLower(strings.TrimSpace(kv[0]))] = v
	}
	return out, nil
}
