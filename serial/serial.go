package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	wasd "github.com/luhtfiimanal/serial-wasd"
)

var (
	// ErrClosed is returned when the port has been closed.
	ErrClosed = errors.New("serial port closed")
	// ErrAlreadyBound is returned by Bind when a receiver is already attached.
	ErrAlreadyBound = errors.New("serial port already bound")
	// ErrDeviceBusy is returned by Open when another process holds the device lock.
	ErrDeviceBusy = errors.New("serial device busy")
	// ErrUnsupportedBaud is returned by Open for baud rates termios cannot express.
	ErrUnsupportedBaud = errors.New("unsupported baud rate")
)

const defaultReadBufferSize = 4096

// Port provides low-latency, killable, chunk-oriented access to a Linux serial port.
// It is safe for concurrent use by multiple goroutines.
type Port struct {
	fd        int
	file      *os.File
	done      chan struct{}
	closeOnce sync.Once
	config    Config
	pipeR     int // self-pipe read fd
	pipeW     int // self-pipe write fd
	lock      *flock.Flock

	mu       sync.Mutex
	bound    bool
	loopDone chan struct{}
	loopErr  error
	stopped  bool
}

// Config holds configuration parameters for opening a serial port.
type Config struct {
	Device   string
	BaudRate int
	// ResetDTR pulses DTR after opening, which resets Arduino-style boards.
	ResetDTR bool
	// ResetPulse is how long DTR is held low (default 100ms).
	ResetPulse time.Duration
	// ResetSettle is how long to wait for the bootloader afterwards (default 2s).
	ResetSettle time.Duration
	// LockDir, if set, holds an advisory lock file per device so two bridges
	// never read the same port.
	LockDir        string
	ReadBufferSize int
}

// Open opens a serial port using the provided Config and returns a Port.
// The port is configured for raw, low-latency, non-buffered operation.
func Open(cfg Config) (*Port, error) {
	baud, err := baudToUnix(cfg.BaudRate)
	if err != nil {
		return nil, err
	}

	var lock *flock.Flock
	if cfg.LockDir != "" {
		lock = flock.New(LockPath(cfg.LockDir, cfg.Device))
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", cfg.Device, err)
		}
		if !locked {
			return nil, fmt.Errorf("%w: %s", ErrDeviceBusy, cfg.Device)
		}
	}

	p, err := open(cfg, baud)
	if err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, err
	}
	p.lock = lock
	return p, nil
}

func open(cfg Config, baud uint32) (*Port, error) {
	fd, err := syscall.Open(cfg.Device, syscall.O_RDWR|syscall.O_NOCTTY|syscall.O_NONBLOCK, 0666)
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}

	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("get termios: %w", err)
	}

	// Raw mode
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB
	termios.Cflag |= unix.CS8 | unix.CLOCAL | unix.CREAD

	// Baud rate
	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= baud

	// Set VMIN=1, VTIME=0 for immediate, non-blocking reads
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("set termios: %w", err)
	}

	// Turn back into blocking mode now that config is done
	if err := syscall.SetNonblock(fd, false); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("set blocking: %w", err)
	}

	// Create self-pipe for killability
	pipeFds := make([]int, 2)
	if err := unix.Pipe2(pipeFds, unix.O_CLOEXEC); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("pipe: %w", err)
	}

	return &Port{
		fd:     fd,
		file:   os.NewFile(uintptr(fd), cfg.Device),
		done:   make(chan struct{}),
		config: cfg,
		pipeR:  pipeFds[0],
		pipeW:  pipeFds[1],
	}, nil
}

// LockPath returns the advisory lock file used for device inside dir.
func LockPath(dir, device string) string {
	return filepath.Join(dir, "LCK.."+filepath.Base(device))
}

// Device returns the device path the port was opened with.
func (p *Port) Device() string { return p.config.Device }

// ResetDTR drops DTR for ResetPulse, raises it again and waits ResetSettle
// for the peripheral to boot. Returns early if ctx is cancelled.
func (p *Port) ResetDTR(ctx context.Context) error {
	pulse := p.config.ResetPulse
	if pulse == 0 {
		pulse = 100 * time.Millisecond
	}
	settle := p.config.ResetSettle
	if settle == 0 {
		settle = 2 * time.Second
	}

	if err := unix.IoctlSetPointerInt(p.fd, unix.TIOCMBIC, unix.TIOCM_DTR); err != nil {
		return fmt.Errorf("clear DTR: %w", err)
	}
	if err := sleepCtx(ctx, pulse); err != nil {
		return err
	}
	if err := unix.IoctlSetPointerInt(p.fd, unix.TIOCMBIS, unix.TIOCM_DTR); err != nil {
		return fmt.Errorf("set DTR: %w", err)
	}
	if err := unix.IoctlSetInt(p.fd, unix.TCFLSH, unix.TCIFLUSH); err != nil {
		return fmt.Errorf("flush input: %w", err)
	}
	return sleepCtx(ctx, settle)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ReadChunksLoop reads raw chunks as soon as they arrive and invokes onChunk
// for each one. The chunk is reused after onChunk returns.
// If an error occurs, onError is called and the loop exits. The loop also
// exits, without calling onError, when the port is closed or unbound.
func (p *Port) ReadChunksLoop(onChunk func([]byte), onError func(error)) {
	size := p.config.ReadBufferSize
	if size <= 0 {
		size = defaultReadBufferSize
	}
	buf := make([]byte, size)
	for {
		// Use poll to wait for data or kill signal
		pfd := []unix.PollFd{
			{Fd: int32(p.fd), Events: unix.POLLIN},
			{Fd: int32(p.pipeR), Events: unix.POLLIN},
		}
		_, err := unix.Poll(pfd, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			onError(err)
			return
		}
		// Check killability
		select {
		case <-p.done:
			return
		default:
		}
		if pfd[1].Revents&unix.POLLIN != 0 {
			// Drain pipe
			var b [1]byte
			unix.Read(p.pipeR, b[:])
			return
		}
		if pfd[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			n, err := p.file.Read(buf)
			if err != nil {
				onError(err)
				return
			}
			if n == 0 {
				onError(io.EOF)
				return
			}
			onChunk(buf[:n])
		}
	}
}

// Bind starts delivering chunks to r on a dedicated goroutine. A port can be
// bound once; the loop stops on Unbind, Close or a read error (see Done).
func (p *Port) Bind(r wasd.Receiver) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	if p.bound {
		return ErrAlreadyBound
	}
	p.bound = true
	p.loopDone = make(chan struct{})

	go func() {
		defer close(p.loopDone)
		p.ReadChunksLoop(r.Receive, func(err error) {
			p.mu.Lock()
			p.loopErr = err
			p.mu.Unlock()
		})
	}()
	return nil
}

// Unbind stops the read loop started by Bind and waits until it has returned,
// so no Receive call is in flight once Unbind returns. Safe to call when the
// port was never bound or the loop already exited.
func (p *Port) Unbind() {
	p.mu.Lock()
	loopDone := p.loopDone
	if loopDone != nil && !p.stopped {
		p.stopped = true
		select {
		case <-p.done:
			// Close already woke the loop.
		default:
			// Wake up poll using self-pipe
			unix.Write(p.pipeW, []byte{1})
		}
	}
	p.mu.Unlock()

	if loopDone != nil {
		<-loopDone
	}
}

// Done returns a channel that is closed when the bound read loop exits, or nil
// if the port was never bound.
func (p *Port) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loopDone
}

// Err returns the error that terminated the read loop, if any.
func (p *Port) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loopErr
}

// Close stops any bound read loop, closes the serial port and releases the
// device lock. Safe to call multiple times; subsequent calls are no-ops.
func (p *Port) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		close(p.done)
		loopDone := p.loopDone
		p.mu.Unlock()

		// Wake up poll using self-pipe
		unix.Write(p.pipeW, []byte{1})
		if loopDone != nil {
			<-loopDone
		}

		p.mu.Lock()
		if p.file != nil {
			err = p.file.Close()
		}
		unix.Close(p.pipeR)
		unix.Close(p.pipeW)
		p.mu.Unlock()
		if p.lock != nil {
			if uerr := p.lock.Unlock(); uerr != nil && err == nil {
				err = uerr
			}
		}
	})
	return err
}

func baudToUnix(baud int) (uint32, error) {
	switch baud {
	case 1200:
		return unix.B1200, nil
	case 2400:
		return unix.B2400, nil
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	default:
		return 0, fmt.Errorf("%w %d", ErrUnsupportedBaud, baud)
	}
}

// SupportedBaudRate reports whether baud can be configured.
func SupportedBaudRate(baud int) bool {
	_, err := baudToUnix(baud)
	return err == nil
}
