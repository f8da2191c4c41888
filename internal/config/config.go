package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full bridge configuration, loaded from a YAML file.
type Config struct {
	// BindAddress/BindPort is where the device listener binds. HomeMate
	// hardware is pointed here via DNS override.
	BindAddress string `yaml:"bind_address"`
	BindPort    int    `yaml:"bind_port"`

	LogLevel string `yaml:"log_level"`

	// Devices maps a device's self-reported local IP to per-device
	// settings. The source IP of the socket is not always usable as a
	// stable identifier (NAT, containers), but the device reports its
	// own LAN address during the handshake, which is.
	Devices map[string]DeviceSettings `yaml:"devices"`

	MQTT        MQTTConfig `yaml:"mqtt"`
	Diagnostics DiagConfig `yaml:"diagnostics"`
	MDNS        MDNSConfig `yaml:"mdns"`
}

// DeviceSettings carries user-provided metadata for one device.
type DeviceSettings struct {
	// Name overrides the derived display name. Empty keeps the default
	// naming but pins it to the device's own LAN address.
	Name string `yaml:"name"`
}

// MQTTConfig configures the optional MQTT state publisher.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

// DiagConfig configures the optional diagnostics HTTP endpoint.
type DiagConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// MDNSConfig configures optional LAN advertisement of the bridge.
type MDNSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		BindAddress: "0.0.0.0",
		BindPort:    10001,
		LogLevel:    "info",
		Devices:     map[string]DeviceSettings{},
		MQTT: MQTTConfig{
			ClientID:    "homemate-bridge",
			TopicPrefix: "homemate",
			QoS:         1,
		},
		Diagnostics: DiagConfig{
			Listen: "127.0.0.1:8099",
		},
		MDNS: MDNSConfig{
			Instance: "HomeMate Bridge",
		},
	}
}

// Load reads and validates a configuration file. An empty path returns the
// defaults. Fields absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Devices == nil {
		cfg.Devices = map[string]DeviceSettings{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the bridge cannot start with.
func (c *Config) Validate() error {
	if c.BindPort < 1 || c.BindPort > 65535 {
		return fmt.Errorf("bind_port %d out of range", c.BindPort)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt enabled but no broker configured")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt qos %d out of range", c.MQTT.QoS)
	}
	if c.Diagnostics.Enabled && c.Diagnostics.Listen == "" {
		return fmt.Errorf("diagnostics enabled but no listen address configured")
	}
	return nil
}
