package wasd

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrRegister is wrapped by errors from Open when the virtual keyboard
	// could not be created.
	ErrRegister = errors.New("register virtual keyboard")
	// ErrBind is wrapped by errors from Open when the transport refused the session.
	ErrBind = errors.New("bind transport")
)

// Receiver consumes raw chunks from a transport. The chunk is only valid for
// the duration of the call.
type Receiver interface {
	Receive(p []byte)
}

// Transport delivers chunks to a bound Receiver. Unbind must not return while
// a Receive call it started is still running, and must not start new ones.
type Transport interface {
	Bind(r Receiver) error
	Unbind()
}

// Observer is notified about what a session does. Implementations must be safe
// for concurrent use and must not block: the per-chunk methods run on the
// receive path with the session mutex held.
type Observer interface {
	BytesReceived(n int)
	BytesDropped(n int)
	LineProcessed(kind LineKind)
	KeyEmitted(cmd Command)
	SinkFailed()
	SessionOpened()
	SessionClosed()
}

// Options configures a Session. The zero value is usable.
type Options struct {
	// Capacity is the line buffer size including the reserved byte (default 64).
	Capacity int
	// MinLineLength is the shortest line passed to the decoder (default 1).
	MinLineLength int
	// Identity is presented to the host (default DefaultIdentity).
	Identity Identity
	// Logger receives diagnostics (default no-op).
	Logger *zap.Logger
	// Observer receives counters (default none).
	Observer Observer
}

func (o Options) withDefaults() Options {
	if o.Capacity == 0 {
		o.Capacity = DefaultCapacity
	}
	if o.MinLineLength == 0 {
		o.MinLineLength = DefaultMinLineLength
	}
	if o.Identity == (Identity{}) {
		o.Identity = DefaultIdentity
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	return o
}

// State is the lifecycle state of a Session.
type State int32

// Session states.
const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// Session binds one transport to one virtual keyboard.
//
// mu covers the line buffer, the device reference and the lifecycle state.
// Receive holds it for a whole chunk, including decoding and emitting, so
// chunks are processed as if sequenced and Close cannot detach the device
// while a chunk is in progress.
type Session struct {
	id        string
	transport Transport
	log       *zap.Logger
	obs       Observer

	mu       sync.Mutex
	state    State
	device   Device
	buf      *LineBuffer
	closed   chan struct{} // closed once teardown has finished
	closeErr error
}

// Open registers a virtual keyboard, creates a session around it and binds the
// session to t. On failure nothing is left registered or bound.
func Open(t Transport, reg Registrar, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	s := &Session{
		id:        uuid.NewString(),
		transport: t,
		obs:       opts.Observer,
		state:     StateOpening,
		closed:    make(chan struct{}),
		buf:       NewLineBuffer(opts.Capacity, opts.MinLineLength),
	}
	s.log = opts.Logger.With(zap.String("session", s.id))

	dev, err := reg.Register(opts.Identity, Keys())
	if err != nil {
		s.state = StateClosed
		return nil, fmt.Errorf("%w %q: %w", ErrRegister, opts.Identity.Name, err)
	}

	s.mu.Lock()
	s.device = dev
	s.state = StateOpen
	s.mu.Unlock()

	if err := t.Bind(s); err != nil {
		s.mu.Lock()
		s.device = nil
		s.state = StateClosed
		s.mu.Unlock()
		if uerr := dev.Unregister(); uerr != nil {
			s.log.Warn("unregister after failed bind", zap.Error(uerr))
		}
		return nil, fmt.Errorf("%w: %w", ErrBind, err)
	}

	s.obs.SessionOpened()
	s.log.Info("session open",
		zap.String("device", opts.Identity.Name),
		zap.Int("capacity", opts.Capacity),
		zap.Int("min_line_length", opts.MinLineLength))
	return s, nil
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Receive processes one chunk from the transport. Complete lines are decoded
// and emitted before Receive returns. It never blocks on anything but the
// session mutex and is a no-op unless the session is open.
func (s *Session) Receive(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen {
		return
	}
	s.obs.BytesReceived(len(p))

	st := s.buf.Feed(p, s.handleLine)
	if st.Dropped > 0 {
		s.obs.BytesDropped(st.Dropped)
		s.log.Debug("line overflow, bytes dropped", zap.Int("dropped", st.Dropped))
	}
}

// handleLine is called by Feed with s.mu held.
func (s *Session) handleLine(line []byte) {
	kind := Classify(line)
	s.obs.LineProcessed(kind)

	cmd, ok := Decode(line)
	if !ok {
		if ce := s.log.Check(zap.DebugLevel, "line skipped"); ce != nil {
			ce.Write(zap.ByteString("line", line), zap.Stringer("kind", kind))
		}
		return
	}
	if err := Emit(s.device, cmd); err != nil {
		s.obs.SinkFailed()
		s.log.Warn("emit failed", zap.Stringer("command", cmd), zap.Error(err))
		return
	}
	s.obs.KeyEmitted(cmd)
	if ce := s.log.Check(zap.DebugLevel, "key"); ce != nil {
		ce.Write(zap.Stringer("key", cmd.Key), zap.Bool("pressed", cmd.Pressed))
	}
}

// Close unbinds the transport, waits for in-flight chunks, then unregisters
// the virtual keyboard. Concurrent callers all wait for the teardown and get
// its result. Closing a session that was never opened is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	switch s.state {
	case StateOpen:
	case StateClosing:
		done := s.closed
		s.mu.Unlock()
		<-done
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.closeErr
	default:
		defer s.mu.Unlock()
		return s.closeErr
	}
	// Acquiring mu already waited out any Receive in progress; from here on
	// Receive returns immediately.
	s.state = StateClosing
	s.mu.Unlock()

	s.transport.Unbind()

	s.mu.Lock()
	dev := s.device
	s.device = nil
	s.buf.Reset()
	s.mu.Unlock()

	s.obs.SessionClosed()
	err := dev.Unregister()
	if err != nil {
		err = fmt.Errorf("unregister: %w", err)
	} else {
		s.log.Info("session closed")
	}

	s.mu.Lock()
	s.state = StateClosed
	s.closeErr = err
	s.mu.Unlock()
	close(s.closed)
	return err
}

type nopObserver struct{}

func (nopObserver) BytesReceived(int)      {}
func (nopObserver) BytesDropped(int)       {}
func (nopObserver) LineProcessed(LineKind) {}
func (nopObserver) KeyEmitted(Command)     {}
func (nopObserver) SinkFailed()            {}
func (nopObserver) SessionOpened()         {}
func (nopObserver) SessionClosed()         {}
