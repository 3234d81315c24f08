package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/spectrum-sweep/internal/sdr"
	"github.com/roman-kulish/spectrum-sweep/internal/sdr/hackrf"
	"github.com/roman-kulish/spectrum-sweep/internal/sdr/rtl"
)

const (
	DeviceHackRF DeviceType = "hackrf"
	DeviceRTLSDR DeviceType = "rtl-sdr"
)

const (
	defaultRestartDelay = rtl.TimeDuration(5 * time.Second)
	defaultPollInterval = rtl.TimeDuration(time.Second)
)

type DeviceType string

// Config represents the main application configuration
type Config struct {
	Settings Settings       `yaml:"settings"`
	Devices  []DeviceConfig `yaml:"devices"`
	Monitor  MonitorConfig  `yaml:"monitor"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel     string           `yaml:"logLevel"`
	RestartDelay rtl.TimeDuration `yaml:"restartDelay"` // Delay before restarting a device that exited on its own
}

// DeviceConfig represents a single device configuration. Config holds a
// *hackrf.Config or a *rtl.Config depending on Type.
type DeviceConfig struct {
	Name      string     `yaml:"name"`
	Type      DeviceType `yaml:"type"`
	Enabled   bool       `yaml:"enabled"`
	Tolerance float64    `yaml:"tolerance"` // Revolution detection tolerance in Hz
	Config    any        `yaml:"config"`
}

// MonitorConfig represents the live sweep feed settings
type MonitorConfig struct {
	Listen       string           `yaml:"listen"`       // HTTP listen address, empty disables the feed
	PollInterval rtl.TimeDuration `yaml:"pollInterval"` // How often device state is checked
}

// UnmarshalYAML decodes the device section, picking the config type from
// the device type.
func (c *DeviceConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Name      string     `yaml:"name"`
		Type      DeviceType `yaml:"type"`
		Enabled   *bool      `yaml:"enabled"`
		Tolerance float64    `yaml:"tolerance"`
		Config    yaml.Node  `yaml:"config"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	c.Name = raw.Name
	c.Type = raw.Type
	c.Enabled = raw.Enabled == nil || *raw.Enabled
	c.Tolerance = raw.Tolerance

	if raw.Config.Kind == 0 {
		return fmt.Errorf("device %q: missing config section", raw.Name)
	}

	switch raw.Type {
	case DeviceHackRF:
		var config hackrf.Config
		if err := raw.Config.Decode(&config); err != nil {
			return fmt.Errorf("device %q: %w", raw.Name, err)
		}
		c.Config = &config

	case DeviceRTLSDR:
		config := rtl.Config{Interval: rtl.DefaultInterval}
		if err := raw.Config.Decode(&config); err != nil {
			return fmt.Errorf("device %q: %w", raw.Name, err)
		}
		c.Config = &config

	default:
		return fmt.Errorf("device %q: unknown type '%s'", raw.Name, raw.Type)
	}

	return nil
}

// Handler builds the sweep handler for the device
func (c *DeviceConfig) Handler() (sdr.Handler, error) {
	switch config := c.Config.(type) {
	case *hackrf.Config:
		return hackrf.New(config), nil
	case *rtl.Config:
		return rtl.New(config), nil
	default:
		return nil, fmt.Errorf("device %q: unsupported config %T", c.Name, c.Config)
	}
}

// LoadConfig reads and validates the YAML configuration file at path
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseConfig(data)
}

// ParseConfig decodes a YAML configuration and fills in defaults
func ParseConfig(data []byte) (*Config, error) {
	config := Config{
		Settings: Settings{
			LogLevel:     "info",
			RestartDelay: defaultRestartDelay,
		},
		Monitor: MonitorConfig{
			PollInterval: defaultPollInterval,
		},
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if len(c.Devices) == 0 {
		return errors.New("no devices specified in configuration")
	}

	if c.Settings.RestartDelay < 0 {
		return fmt.Errorf("invalid restart delay: %s", c.Settings.RestartDelay)
	}

	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("invalid poll interval: %s", c.Monitor.PollInterval)
	}

	names := make(map[string]struct{}, len(c.Devices))
	for _, device := range c.Devices {
		if device.Name == "" {
			return errors.New("device name is required")
		}
		if _, ok := names[device.Name]; ok {
			return fmt.Errorf("device %s already exists", device.Name)
		}
		names[device.Name] = struct{}{}
	}

	return nil
}
