package config

import (
	"time"

	"github.com/spf13/viper"

	wasd "github.com/luhtfiimanal/serial-wasd"
	"github.com/luhtfiimanal/serial-wasd/internal/logger"
	"github.com/luhtfiimanal/serial-wasd/uinput"
)

// Default values.
const (
	DefaultDevice           = "/dev/ttyACM0"
	DefaultBaudRate         = 9600
	DefaultResetPulse       = 100 * time.Millisecond
	DefaultResetSettle      = 2 * time.Second
	DefaultReconnectInitial = 2 * time.Second
	DefaultReconnectMax     = 30 * time.Second
)

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("device", DefaultDevice)
	v.SetDefault("baud_rate", DefaultBaudRate)
	v.SetDefault("reset_dtr", false)
	v.SetDefault("reset_pulse", DefaultResetPulse)
	v.SetDefault("reset_settle", DefaultResetSettle)
	v.SetDefault("lock_dir", "")
	v.SetDefault("buffer_capacity", wasd.DefaultCapacity)
	v.SetDefault("min_line_length", wasd.DefaultMinLineLength)
	v.SetDefault("device_name", wasd.DefaultIdentity.Name)
	v.SetDefault("uinput_path", uinput.DefaultPath)
	v.SetDefault("reconnect_initial", DefaultReconnectInitial)
	v.SetDefault("reconnect_max", DefaultReconnectMax)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("log_format", logger.FormatAuto)
	v.SetDefault("debug", false)
}
