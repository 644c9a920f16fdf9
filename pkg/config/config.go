// Package config loads the daemon's host-side bootstrap file: pin
// names, the settings store path and the radio backend. Device
// settings themselves live in the binary settings store, not here.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level daemon configuration.
type Config struct {
	Pins    PinsConfig    `yaml:"pins"`
	Store   StoreConfig   `yaml:"store"`
	Radio   RadioConfig   `yaml:"radio"`
	HomeKit HomeKitConfig `yaml:"homekit"`
}

// PinsConfig names the GPIO lines by their periph registry names.
type PinsConfig struct {
	Trigger      string `yaml:"trigger"`
	Echo         string `yaml:"echo"`
	Button       string `yaml:"button"`
	ButtonInvert bool   `yaml:"button_invert"`
	LED          string `yaml:"led"`
	LEDInvert    bool   `yaml:"led_invert"`
}

// StoreConfig locates the 64-byte settings block.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// RadioConfig selects and parameterizes the bridge transport. Backend
// is one of serial, ble or mock.
type RadioConfig struct {
	Backend string       `yaml:"backend"`
	Serial  SerialConfig `yaml:"serial"`
	BLE     BLEConfig    `yaml:"ble"`
}

type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

type BLEConfig struct {
	Adapter string `yaml:"adapter"`
	Addr    string `yaml:"addr"`
}

// HomeKitConfig drives the optional HomeKit accessory.
type HomeKitConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Pin         string `yaml:"pin"`
	StoragePath string `yaml:"storage_path"`
}

// Default returns the configuration for a stock Raspberry Pi wiring.
func Default() *Config {
	return &Config{
		Pins: PinsConfig{
			Trigger:      "GPIO23",
			Echo:         "GPIO24",
			Button:       "GPIO17",
			ButtonInvert: true,
			LED:          "GPIO27",
		},
		Store: StoreConfig{
			Path: "/var/lib/watersensord/settings.bin",
		},
		Radio: RadioConfig{
			Backend: "serial",
			Serial: SerialConfig{
				Port: "/dev/ttyUSB0",
				Baud: 115200,
			},
			BLE: BLEConfig{
				Adapter: "hci0",
			},
		},
		HomeKit: HomeKitConfig{
			Enabled:     true,
			Pin:         "80000000",
			StoragePath: "/var/lib/watersensord/homekit",
		},
	}
}

// Load reads the configuration from path. A missing file yields the
// defaults; a present file is filled up with them.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ensureDefaults()
	return &cfg, nil
}

// Save writes the configuration to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) ensureDefaults() {
	def := Default()
	if c.Pins.Trigger == "" {
		c.Pins.Trigger = def.Pins.Trigger
	}
	if c.Pins.Echo == "" {
		c.Pins.Echo = def.Pins.Echo
	}
	if c.Pins.Button == "" {
		c.Pins.Button = def.Pins.Button
	}
	if c.Pins.LED == "" {
		c.Pins.LED = def.Pins.LED
	}
	if c.Store.Path == "" {
		c.Store.Path = def.Store.Path
	}
	if c.Radio.Backend == "" {
		c.Radio.Backend = def.Radio.Backend
	}
	if c.Radio.Serial.Port == "" {
		c.Radio.Serial.Port = def.Radio.Serial.Port
	}
	if c.Radio.Serial.Baud == 0 {
		c.Radio.Serial.Baud = def.Radio.Serial.Baud
	}
	if c.Radio.BLE.Adapter == "" {
		c.Radio.BLE.Adapter = def.Radio.BLE.Adapter
	}
	if c.HomeKit.Pin == "" {
		c.HomeKit.Pin = def.HomeKit.Pin
	}
	if c.HomeKit.StoragePath == "" {
		c.HomeKit.StoragePath = def.HomeKit.StoragePath
	}
}
