package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ericogr/adxl345-to-mqtt/pkg/config"
	"github.com/ericogr/adxl345-to-mqtt/pkg/output"
	"github.com/ericogr/adxl345-to-mqtt/pkg/sensor"
	"github.com/fxamacker/cbor/v2"
)

const (
	// defaults
	DefaultServer     = "tcp://localhost:1883"
	DefaultClientID   = "adxl345-client"
	DefaultStateTopic = "adxl345"

	FormatJSON = "json"
	FormatCBOR = "cbor"

	// discovery payload keys/values
	keyName                = "name"
	keyStateTopic          = "state_topic"
	keyUnitOfMeasurement   = "unit_of_measurement"
	keyStateClass          = "state_class"
	keyValueTemplate       = "value_template"
	keyJSONAttributesTopic = "json_attributes_topic"
	keyUniqueID            = "unique_id"
	unitG                  = "g"
	stateClassMeasurement  = "measurement"
	valueTemplateAxisFmt   = "{{ value_json.%s_g }}"
	valueTemplateMagnitude = "{{ value_json.magnitude_g }}"
)

var axes = []string{"x", "y", "z"}

// publisher is the subset of mqtt.Client used by MQTTOutput.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type MQTTOutput struct {
	client     publisher
	stateTopic string
	format     string
}

func NewMQTT(cfg config.MQTTConfig) (output.Output, error) {
	cfg = withDefaults(cfg)
	if cfg.PayloadFormat != FormatJSON && cfg.PayloadFormat != FormatCBOR {
		return nil, fmt.Errorf("unknown mqtt payload format %q", cfg.PayloadFormat)
	}
	opts := mqtt.NewClientOptions().AddBroker(cfg.Server).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return newOutput(client, cfg), nil
}

// newOutput publishes the Home Assistant discovery payloads, if a discovery
// topic is configured, and returns the output.
func newOutput(client publisher, cfg config.MQTTConfig) *MQTTOutput {
	m := &MQTTOutput{client: client, stateTopic: cfg.StateTopic, format: cfg.PayloadFormat}
	for topic, payload := range discoveryPayloads(cfg) {
		if err := publishJSON(client, topic, true, payload); err != nil {
			log.Printf("mqtt discovery publish error: %v", err)
		}
	}
	return m
}

func withDefaults(cfg config.MQTTConfig) config.MQTTConfig {
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.StateTopic == "" {
		cfg.StateTopic = DefaultStateTopic
	}
	if cfg.PayloadFormat == "" {
		cfg.PayloadFormat = FormatJSON
	}
	cfg.PayloadFormat = strings.ToLower(cfg.PayloadFormat)
	return cfg
}

func (m *MQTTOutput) Publish(s sensor.Sample) error {
	b, err := encodePayload(m.format, s)
	if err != nil {
		return err
	}
	token := m.client.Publish(m.stateTopic, 0, false, b)
	token.Wait()
	return token.Error()
}

func (m *MQTTOutput) Close() error {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	return nil
}

func samplePayload(s sensor.Sample) map[string]interface{} {
	x, y, z := s.G()
	return map[string]interface{}{
		"x":           s.X,
		"y":           s.Y,
		"z":           s.Z,
		"x_g":         x,
		"y_g":         y,
		"z_g":         z,
		"magnitude_g": math.Sqrt(x*x + y*y + z*z),
		"timestamp":   s.Timestamp.Format(time.RFC3339Nano),
	}
}

func encodePayload(format string, s sensor.Sample) ([]byte, error) {
	payload := samplePayload(s)
	if format == FormatCBOR {
		return cbor.Marshal(payload)
	}
	return json.Marshal(payload)
}

// discoveryPayloads builds one entry per axis when the discovery topic has a
// %s formatter, otherwise a single entry reporting the magnitude.
func discoveryPayloads(cfg config.MQTTConfig) map[string]map[string]interface{} {
	out := map[string]map[string]interface{}{}
	if cfg.DiscoveryTopic == "" {
		return out
	}
	if strings.Contains(cfg.DiscoveryTopic, "%s") {
		for _, axis := range axes {
			topic := fmt.Sprintf(cfg.DiscoveryTopic, axis)
			out[topic] = baseDiscoveryPayload(discoveryName(cfg, axis), cfg.StateTopic, discoveryUniqueID(cfg, axis), fmt.Sprintf(valueTemplateAxisFmt, axis))
		}
		return out
	}
	out[cfg.DiscoveryTopic] = baseDiscoveryPayload(discoveryName(cfg, ""), cfg.StateTopic, discoveryUniqueID(cfg, ""), valueTemplateMagnitude)
	return out
}

// helper: build a human-friendly discovery name; a non-empty axis is appended
func discoveryName(cfg config.MQTTConfig, axis string) string {
	name := cfg.DiscoveryName
	if name == "" {
		name = fmt.Sprintf("ADXL345 %s", cfg.ClientID)
	}
	if axis != "" {
		name = fmt.Sprintf("%s %s", name, axis)
	}
	return name
}

func discoveryUniqueID(cfg config.MQTTConfig, axis string) string {
	uid := cfg.DiscoveryUniqueID
	if uid == "" {
		uid = cfg.ClientID
	}
	if uid != "" && axis != "" {
		uid = fmt.Sprintf("%s_%s", uid, axis)
	}
	return uid
}

func baseDiscoveryPayload(name, stateTopic, uniqueID, valueTemplate string) map[string]interface{} {
	payload := map[string]interface{}{
		keyName:                name,
		keyStateTopic:          stateTopic,
		keyUnitOfMeasurement:   unitG,
		keyStateClass:          stateClassMeasurement,
		keyValueTemplate:       valueTemplate,
		keyJSONAttributesTopic: stateTopic,
	}
	if uniqueID != "" {
		payload[keyUniqueID] = uniqueID
	}
	return payload
}

// helper: marshal and publish JSON payload
func publishJSON(client publisher, topic string, retained bool, payload map[string]interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	token := client.Publish(topic, 0, retained, b)
	token.Wait()
	return token.Error()
}
