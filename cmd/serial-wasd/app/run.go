package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	wasd "github.com/luhtfiimanal/serial-wasd"
	"github.com/luhtfiimanal/serial-wasd/bridge"
	"github.com/luhtfiimanal/serial-wasd/config"
	"github.com/luhtfiimanal/serial-wasd/internal/logger"
	"github.com/luhtfiimanal/serial-wasd/metrics"
	"github.com/luhtfiimanal/serial-wasd/uinput"
)

const shutdownTimeout = 5 * time.Second

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{ //nolint:gochecknoglobals
	"device":            "device",
	"baud-rate":         "baud_rate",
	"reset-dtr":         "reset_dtr",
	"reset-pulse":       "reset_pulse",
	"reset-settle":      "reset_settle",
	"lock-dir":          "lock_dir",
	"buffer-capacity":   "buffer_capacity",
	"min-line-length":   "min_line_length",
	"device-name":       "device_name",
	"uinput-path":       "uinput_path",
	"reconnect-initial": "reconnect_initial",
	"reconnect-max":     "reconnect_max",
	"metrics-addr":      "metrics_addr",
	"log-format":        "log_format",
	"debug":             "debug",
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Bridge the serial device to a virtual keyboard until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.LogFormat, cfg.Debug)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			return runBridge(cmd.Context(), cfg, log)
		},
	}

	f := cmd.Flags()
	f.StringP("device", "d", config.DefaultDevice, "Serial device path")
	f.IntP("baud-rate", "b", config.DefaultBaudRate, "Serial baud rate")
	f.Bool("reset-dtr", false, "Pulse DTR after opening to reset the peripheral")
	f.Duration("reset-pulse", config.DefaultResetPulse, "How long DTR is held low during a reset")
	f.Duration("reset-settle", config.DefaultResetSettle, "How long to wait for the peripheral to boot after a reset")
	f.String("lock-dir", "", "Directory for per-device lock files (disabled when empty)")
	f.Int("buffer-capacity", wasd.DefaultCapacity, "Line buffer size in bytes, one of which is reserved")
	f.Int("min-line-length", wasd.DefaultMinLineLength, "Shortest line that is decoded (1 or 2)")
	f.String("device-name", wasd.DefaultIdentity.Name, "Name of the virtual keyboard")
	f.String("uinput-path", uinput.DefaultPath, "Path of the uinput device")
	f.Duration("reconnect-initial", config.DefaultReconnectInitial, "First delay before reopening a lost device")
	f.Duration("reconnect-max", config.DefaultReconnectMax, "Longest delay between reopen attempts")
	f.String("metrics-addr", "", "Serve /metrics and /healthz on this address (disabled when empty)")
	f.String("log-format", logger.FormatAuto, "Log format: auto, console or json")
	return cmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	v, err := config.NewViper(path)
	if err != nil {
		return nil, err
	}
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return nil, err
	}
	return config.Load(v)
}

// bindFlags binds every known flag in fs to its config key. Unset flags do
// not override the file or environment.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func runBridge(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	col := metrics.New()
	b := bridge.New(bridge.Config{
		Serial:           cfg.SerialConfig(),
		Session:          cfg.SessionOptions(),
		ReconnectInitial: cfg.ReconnectInitial,
		ReconnectMax:     cfg.ReconnectMax,
	}, uinput.NewRegistrar(cfg.UinputPath),
		bridge.WithLogger(log),
		bridge.WithMetrics(col),
	)

	log.Info("starting serial-wasd",
		zap.String("version", version),
		zap.String("device", cfg.Device),
		zap.Int("baud_rate", cfg.BaudRate),
		zap.Int("min_line_length", cfg.MinLineLength),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Run(ctx)
	})

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metrics.Handler(col, b.Healthy),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("serving metrics", zap.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	log.Info("serial-wasd stopped")
	return err
}
