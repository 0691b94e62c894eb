// Package bridge keeps a serial device connected to a virtual keyboard,
// reopening the device whenever it disappears.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	wasd "github.com/luhtfiimanal/serial-wasd"
	"github.com/luhtfiimanal/serial-wasd/metrics"
	"github.com/luhtfiimanal/serial-wasd/serial"
)

// Port is the transport the bridge drives. *serial.Port implements it.
type Port interface {
	wasd.Transport
	Done() <-chan struct{}
	Err() error
	Close() error
}

// Opener opens the serial device. Errors wrapped with backoff.Permanent stop
// the bridge; anything else is retried.
type Opener func(ctx context.Context) (Port, error)

// Config configures a Bridge.
type Config struct {
	Serial           serial.Config
	Session          wasd.Options
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
}

// Option customises a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger used by the bridge and its sessions.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) { b.log = l }
}

// WithMetrics records session and reconnect activity on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(b *Bridge) { b.metrics = c }
}

// WithOpener replaces the default serial opener.
func WithOpener(o Opener) Option {
	return func(b *Bridge) { b.open = o }
}

// Bridge supervises one serial device.
type Bridge struct {
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Collector
	open    Opener
	mgr     *wasd.Manager
}

// New returns a Bridge that registers keyboards through reg.
func New(cfg Config, reg wasd.Registrar, opts ...Option) *Bridge {
	b := &Bridge{
		cfg: cfg,
		log: zap.NewNop(),
	}
	for _, o := range opts {
		o(b)
	}
	if b.open == nil {
		b.open = b.openSerial
	}
	b.log = b.log.With(zap.String("serial", cfg.Serial.Device))

	sessOpts := cfg.Session
	sessOpts.Logger = b.log
	if b.metrics != nil {
		sessOpts.Observer = b.metrics
	}
	b.mgr = wasd.NewManager(reg, sessOpts)
	return b
}

// Healthy reports whether a session is currently open.
func (b *Bridge) Healthy() bool {
	return b.mgr.Len() > 0
}

// Run connects, serves and reconnects until ctx is cancelled, in which case
// it returns nil. It returns an error only for failures retrying cannot fix,
// such as the virtual keyboard not being creatable.
func (b *Bridge) Run(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		port, err := b.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if attempt > 0 {
			b.metrics.Reconnect()
		}

		sess, err := b.mgr.Open(port)
		if err != nil {
			b.closePort(port)
			if errors.Is(err, wasd.ErrRegister) {
				return err
			}
			b.log.Warn("session open failed", zap.Error(err))
			if !sleep(ctx, b.retryDelay()) {
				return nil
			}
			continue
		}
		b.log.Info("bridge connected", zap.String("session", sess.ID()))

		select {
		case <-ctx.Done():
			b.teardown(sess, port)
			return nil
		case <-port.Done():
			b.log.Warn("serial device lost", zap.Error(port.Err()))
			b.teardown(sess, port)
		}
	}
}

func (b *Bridge) connect(ctx context.Context) (Port, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.retryDelay()
	if b.cfg.ReconnectMax > 0 {
		eb.MaxInterval = b.cfg.ReconnectMax
	}
	eb.Reset()

	return backoff.Retry(ctx, func() (Port, error) {
		return b.open(ctx)
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			b.log.Info("waiting for serial device", zap.Duration("retry_in", next), zap.Error(err))
		}),
	)
}

// retryDelay is the first wait after a failure. Zero falls back to the
// backoff default.
func (b *Bridge) retryDelay() time.Duration {
	if b.cfg.ReconnectInitial > 0 {
		return b.cfg.ReconnectInitial
	}
	return backoff.DefaultInitialInterval
}

func (b *Bridge) openSerial(ctx context.Context) (Port, error) {
	p, err := serial.Open(b.cfg.Serial)
	if err != nil {
		if errors.Is(err, serial.ErrUnsupportedBaud) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	if b.cfg.Serial.ResetDTR {
		if err := p.ResetDTR(ctx); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("reset %s: %w", b.cfg.Serial.Device, err)
		}
	}
	return p, nil
}

func (b *Bridge) teardown(sess *wasd.Session, port Port) {
	if err := b.mgr.Close(sess); err != nil {
		b.log.Warn("session close failed", zap.Error(err))
	}
	b.closePort(port)
}

func (b *Bridge) closePort(port Port) {
	if err := port.Close(); err != nil {
		b.log.Debug("serial close", zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
