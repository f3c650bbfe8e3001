package main

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds the CLI's application-level configuration: everything that
// is not already owned by atat.Config or serialtransport's own dialer
// types.
type Config struct {
	BindAddress string
	SerialPort  string
	BaudRate    int
	LegacySerial bool
	LogLevel    string

	EchoEnabled    bool
	Cooldown       time.Duration
	DefaultTimeout time.Duration

	MqttBroker   string
	MqttClientID string
	MqttTopic    string
	MqttUsername string
	MqttPassword string
}

// ConfigOption mutates a Config being built up by LoadConfig.
type ConfigOption func(*Config) error

// LoadConfig applies opts in order, accumulating into a fresh Config.
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	cfg := &Config{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// WithDefaults applies the CLI's built-in defaults.
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 115200
		c.LogLevel = "info"
		c.EchoEnabled = true
		c.Cooldown = 20 * time.Millisecond
		c.DefaultTimeout = time.Second
		c.MqttClientID = "atat-cli"
		c.MqttTopic = "atat/urc"
		return nil
	}
}

// WithEnv overrides fields from environment variables, when set.
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if v := os.Getenv("BIND_ADDRESS"); v != "" {
			c.BindAddress = v
		}
		if v := os.Getenv("SERIAL_PORT"); v != "" {
			c.SerialPort = v
		}
		if v := os.Getenv("BAUD_RATE"); v != "" {
			if b, err := strconv.Atoi(v); err == nil {
				c.BaudRate = b
			}
		}
		if v := os.Getenv("LEGACY_SERIAL"); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.LegacySerial = b
			}
		}
		if v := os.Getenv("LOG_LEVEL"); v != "" {
			c.LogLevel = v
		}
		if v := os.Getenv("ECHO_ENABLED"); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.EchoEnabled = b
			}
		}
		if v := os.Getenv("COOLDOWN"); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				c.Cooldown = d
			}
		}
		if v := os.Getenv("DEFAULT_TIMEOUT"); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				c.DefaultTimeout = d
			}
		}
		if v := os.Getenv("MQTT_BROKER"); v != "" {
			c.MqttBroker = v
		}
		if v := os.Getenv("MQTT_CLIENT_ID"); v != "" {
			c.MqttClientID = v
		}
		if v := os.Getenv("MQTT_TOPIC"); v != "" {
			c.MqttTopic = v
		}
		if v := os.Getenv("MQTT_USERNAME"); v != "" {
			c.MqttUsername = v
		}
		if v := os.Getenv("MQTT_PASSWORD"); v != "" {
			c.MqttPassword = v
		}
		return nil
	}
}

// WithFlags overrides fields that were explicitly set on fSet.
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.BaudRate = b
				}
			case "legacy-serial":
				if b, err := strconv.ParseBool(f.Value.String()); err == nil {
					c.LegacySerial = b
				}
			case "log-level":
				c.LogLevel = f.Value.String()
			case "echo":
				if b, err := strconv.ParseBool(f.Value.String()); err == nil {
					c.EchoEnabled = b
				}
			case "cooldown":
				if d, err := time.ParseDuration(f.Value.String()); err == nil {
					c.Cooldown = d
				}
			case "default-timeout":
				if d, err := time.ParseDuration(f.Value.String()); err == nil {
					c.DefaultTimeout = d
				}
			case "mqtt-broker":
				c.MqttBroker = f.Value.String()
			case "mqtt-topic":
				c.MqttTopic = f.Value.String()
			}
		})
		return nil
	}
}
