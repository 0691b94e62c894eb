// Package config holds the serial-wasd runtime configuration.
package config

import (
	"errors"
	"fmt"
	"time"

	wasd "github.com/luhtfiimanal/serial-wasd"
	"github.com/luhtfiimanal/serial-wasd/internal/logger"
	"github.com/luhtfiimanal/serial-wasd/serial"
)

// Config is the complete runtime configuration.
type Config struct {
	// ── serial ───────────────────────────────────────────────────
	Device      string        `mapstructure:"device"`
	BaudRate    int           `mapstructure:"baud_rate"`
	ResetDTR    bool          `mapstructure:"reset_dtr"`
	ResetPulse  time.Duration `mapstructure:"reset_pulse"`
	ResetSettle time.Duration `mapstructure:"reset_settle"`
	LockDir     string        `mapstructure:"lock_dir"`

	// ── protocol ─────────────────────────────────────────────────
	BufferCapacity int `mapstructure:"buffer_capacity"`
	MinLineLength  int `mapstructure:"min_line_length"`

	// ── virtual keyboard ─────────────────────────────────────────
	DeviceName string `mapstructure:"device_name"`
	UinputPath string `mapstructure:"uinput_path"`

	// ── supervisor ───────────────────────────────────────────────
	ReconnectInitial time.Duration `mapstructure:"reconnect_initial"`
	ReconnectMax     time.Duration `mapstructure:"reconnect_max"`

	// ── observability ────────────────────────────────────────────
	MetricsAddr string `mapstructure:"metrics_addr"`
	LogFormat   string `mapstructure:"log_format"` // logger.Format*
	Debug       bool   `mapstructure:"debug"`
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Device == "" {
		errs = append(errs, errors.New("device is required"))
	}
	if !serial.SupportedBaudRate(c.BaudRate) {
		errs = append(errs, fmt.Errorf("unsupported baud_rate %d", c.BaudRate))
	}
	if c.ResetPulse < 0 || c.ResetSettle < 0 {
		errs = append(errs, errors.New("reset_pulse and reset_settle must not be negative"))
	}
	if c.BufferCapacity < 3 || c.BufferCapacity > 4096 {
		errs = append(errs, fmt.Errorf("buffer_capacity %d out of range [3, 4096]", c.BufferCapacity))
	}
	if c.MinLineLength < 1 || c.MinLineLength > 2 {
		errs = append(errs, fmt.Errorf("min_line_length %d must be 1 or 2", c.MinLineLength))
	}
	if c.DeviceName == "" {
		errs = append(errs, errors.New("device_name is required"))
	}
	if len(c.DeviceName) >= 80 {
		errs = append(errs, errors.New("device_name must be shorter than 80 bytes"))
	}
	if c.ReconnectInitial <= 0 {
		errs = append(errs, errors.New("reconnect_initial must be positive"))
	}
	if c.ReconnectMax < c.ReconnectInitial {
		errs = append(errs, errors.New("reconnect_max must be at least reconnect_initial"))
	}
	switch c.LogFormat {
	case logger.FormatAuto, logger.FormatConsole, logger.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// SessionOptions converts the protocol and keyboard settings for wasd.Open.
func (c *Config) SessionOptions() wasd.Options {
	id := wasd.DefaultIdentity
	id.Name = c.DeviceName
	return wasd.Options{
		Capacity:      c.BufferCapacity,
		MinLineLength: c.MinLineLength,
		Identity:      id,
	}
}

// SerialConfig converts the serial settings for serial.Open.
func (c *Config) SerialConfig() serial.Config {
	return serial.Config{
		Device:      c.Device,
		BaudRate:    c.BaudRate,
		ResetDTR:    c.ResetDTR,
		ResetPulse:  c.ResetPulse,
		ResetSettle: c.ResetSettle,
		LockDir:     c.LockDir,
	}
}
