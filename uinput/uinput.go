// Package uinput creates virtual keyboards through the Linux uinput module.
package uinput

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	wasd "github.com/luhtfiimanal/serial-wasd"
)

// DefaultPath is the uinput control node.
const DefaultPath = "/dev/uinput"

// ErrUnregistered is returned when writing to a keyboard that has been removed.
var ErrUnregistered = errors.New("uinput: keyboard unregistered")

// Registrar creates uinput keyboards. It implements wasd.Registrar.
type Registrar struct {
	Path string
}

// NewRegistrar returns a Registrar using path, or DefaultPath when empty.
func NewRegistrar(path string) *Registrar {
	if path == "" {
		path = DefaultPath
	}
	return &Registrar{Path: path}
}

// Register creates a virtual keyboard that can emit the given keys.
func (r *Registrar) Register(id wasd.Identity, keys []wasd.Key) (wasd.Device, error) {
	fd, err := unix.Open(r.Path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", r.Path, err)
	}
	if err := setup(fd, id, keys); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return newKeyboard(os.NewFile(uintptr(fd), r.Path), fd, id.Name), nil
}

func setup(fd int, id wasd.Identity, keys []wasd.Key) error {
	if err := unix.IoctlSetInt(fd, uiSetEvBit, int(EvKey)); err != nil {
		return fmt.Errorf("UI_SET_EVBIT: %w", err)
	}
	for _, k := range keys {
		if err := unix.IoctlSetInt(fd, uiSetKeyBit, int(k.Code())); err != nil {
			return fmt.Errorf("UI_SET_KEYBIT %s: %w", k, err)
		}
	}

	var us uinputSetup
	us.ID = inputID{
		Bustype: id.BusType,
		Vendor:  id.Vendor,
		Product: id.Product,
		Version: id.Version,
	}
	copy(us.Name[:maxNameSize-1], id.Name)
	if err := ioctlPtr(fd, uiDevSetup, unsafe.Pointer(&us)); err != nil {
		return fmt.Errorf("UI_DEV_SETUP: %w", err)
	}
	if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
		return fmt.Errorf("UI_DEV_CREATE: %w", err)
	}
	return nil
}

func ioctlPtr(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// Keyboard is a registered uinput device. It implements wasd.Device.
type Keyboard struct {
	mu   sync.Mutex
	file *os.File
	fd   int
	name string
}

func newKeyboard(f *os.File, fd int, name string) *Keyboard {
	return &Keyboard{file: f, fd: fd, name: name}
}

// Name returns the name the keyboard was registered with.
func (k *Keyboard) Name() string { return k.name }

// ReportKey writes an EV_KEY event.
func (k *Keyboard) ReportKey(code uint16, pressed bool) error {
	var v int32
	if pressed {
		v = 1
	}
	return k.write(EncodeEvent(EvKey, code, v))
}

// Sync writes an EV_SYN/SYN_REPORT event, closing the frame.
func (k *Keyboard) Sync() error {
	return k.write(EncodeEvent(EvSyn, SynReport, 0))
}

func (k *Keyboard) write(ev []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.file == nil {
		return ErrUnregistered
	}
	_, err := k.file.Write(ev)
	return err
}

// Unregister destroys the device and closes the control node. Further calls
// are no-ops.
func (k *Keyboard) Unregister() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.file == nil {
		return nil
	}
	err := unix.IoctlSetInt(k.fd, uiDevDestroy, 0)
	if cerr := k.file.Close(); err == nil {
		err = cerr
	}
	k.file = nil
	if err != nil {
		return fmt.Errorf("destroy %s: %w", k.name, err)
	}
	return nil
}
