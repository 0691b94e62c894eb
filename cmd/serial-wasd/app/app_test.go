package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/serial-wasd/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "serial-wasd dev\n", out)
}

func TestRun_InvalidFlag(t *testing.T) {
	_, err := execute(t, "run", "--baud-rate", "1234", "--min-line-length", "3")
	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported baud_rate 1234")
	assert.ErrorContains(t, err, "min_line_length 3 must be 1 or 2")
}

func TestRun_MissingConfigFile(t *testing.T) {
	_, err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestRun_InvalidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serial-wasd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_format: xml\n"), 0o600))

	_, err := execute(t, "run", "-c", path)
	require.ErrorContains(t, err, `unknown log_format "xml"`)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serial-wasd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"device: /dev/ttyUSB0\nbaud_rate: 19200\nreconnect_max: 1m\n"), 0o600))
	t.Setenv("SERIAL_WASD_BAUD_RATE", "57600")

	root := NewRootCmd()
	run, _, err := root.Find([]string{"run"})
	require.NoError(t, err)
	require.NoError(t, run.ParseFlags([]string{"--config", path, "--device", "/dev/ttyS1", "--debug"}))

	cfg, err := loadConfig(run)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyS1", cfg.Device, "flag beats file")
	assert.Equal(t, 57600, cfg.BaudRate, "env beats file")
	assert.Equal(t, time.Minute, cfg.ReconnectMax, "file beats default")
	assert.Equal(t, config.DefaultReconnectInitial, cfg.ReconnectInitial)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 1, cfg.MinLineLength)
}

func TestRunFlags_CoverEveryConfigKey(t *testing.T) {
	v, err := config.NewViper("")
	require.NoError(t, err)

	bound := map[string]bool{}
	for _, key := range flagKeys {
		bound[key] = true
	}
	for _, key := range v.AllKeys() {
		assert.True(t, bound[key], "config key %q has no flag", key)
	}

	run := newRunCmd()
	for name := range flagKeys {
		if name == "debug" {
			continue // persistent on the root command
		}
		assert.NotNil(t, run.Flags().Lookup(name), "flag --%s", name)
	}
}

func TestLoadConfig_TuningFlags(t *testing.T) {
	root := NewRootCmd()
	run, _, err := root.Find([]string{"run"})
	require.NoError(t, err)
	require.NoError(t, run.ParseFlags([]string{
		"--buffer-capacity", "128",
		"--reset-pulse", "250ms",
		"--reset-settle", "3s",
	}))

	cfg, err := loadConfig(run)
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.BufferCapacity)
	assert.Equal(t, 250*time.Millisecond, cfg.ResetPulse)
	assert.Equal(t, 3*time.Second, cfg.ResetSettle)
	assert.Equal(t, 128, cfg.SessionOptions().Capacity)
	assert.Equal(t, 250*time.Millisecond, cfg.SerialConfig().ResetPulse)
}

func TestRootHelp(t *testing.T) {
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "run")
	assert.Contains(t, out, "version")
}
