package uinput

import (
	"encoding/binary"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Event types and codes from linux/input-event-codes.h.
const (
	EvSyn     uint16 = 0x00
	EvKey     uint16 = 0x01
	SynReport uint16 = 0
)

// Ioctl requests from linux/uinput.h.
const (
	uiDevCreate  = 0x5501     // _IO('U', 1)
	uiDevDestroy = 0x5502     // _IO('U', 2)
	uiDevSetup   = 0x405c5503 // _IOW('U', 3, struct uinput_setup)
	uiSetEvBit   = 0x40045564 // _IOW('U', 100, int)
	uiSetKeyBit  = 0x40045565 // _IOW('U', 101, int)
)

const maxNameSize = 80

// timevalSize is 16 on 64-bit platforms and 8 on 32-bit ones.
var timevalSize = int(unsafe.Sizeof(unix.Timeval{}))

// EventSize is the size of struct input_event on this platform.
var EventSize = timevalSize + 8

// inputID matches struct input_id.
type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// uinputSetup matches struct uinput_setup.
type uinputSetup struct {
	ID           inputID
	Name         [maxNameSize]byte
	FFEffectsMax uint32
}

// EncodeEvent returns a struct input_event with a zero timestamp; the kernel
// stamps events written to uinput itself.
func EncodeEvent(typ, code uint16, value int32) []byte {
	buf := make([]byte, EventSize)
	binary.NativeEndian.PutUint16(buf[timevalSize:], typ)
	binary.NativeEndian.PutUint16(buf[timevalSize+2:], code)
	binary.NativeEndian.PutUint32(buf[timevalSize+4:], uint32(value))
	return buf
}

// DecodeEvent is the inverse of EncodeEvent. It ignores the timestamp.
func DecodeEvent(buf []byte) (typ, code uint16, value int32, ok bool) {
	if len(buf) < EventSize {
		return 0, 0, 0, false
	}
	typ = binary.NativeEndian.Uint16(buf[timevalSize:])
	code = binary.NativeEndian.Uint16(buf[timevalSize+2:])
	value = int32(binary.NativeEndian.Uint32(buf[timevalSize+4:]))
	return typ, code, value, true
}
