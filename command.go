package wasd

import "fmt"

// Key is one of the four keys the peripheral can drive, stored as its wire byte.
type Key byte

// Supported keys.
const (
	KeyW Key = 'W'
	KeyA Key = 'A'
	KeyS Key = 'S'
	KeyD Key = 'D'
)

// Linux input event codes (linux/input-event-codes.h).
const (
	codeW uint16 = 17
	codeA uint16 = 30
	codeS uint16 = 31
	codeD uint16 = 32
)

var keys = [...]Key{KeyW, KeyA, KeyS, KeyD}

// Keys returns every key a registered device must declare. The slice is a
// fresh copy on each call.
func Keys() []Key {
	out := keys
	return out[:]
}

// Code returns the Linux key code for k, or 0 for an unknown key.
func (k Key) Code() uint16 {
	switch k {
	case KeyW:
		return codeW
	case KeyA:
		return codeA
	case KeyS:
		return codeS
	case KeyD:
		return codeD
	default:
		return 0
	}
}

func (k Key) String() string {
	if k.Code() == 0 {
		return fmt.Sprintf("Key(%#02x)", byte(k))
	}
	return string(rune(k))
}

// Command is a decoded key state change.
type Command struct {
	Key     Key
	Pressed bool
}

func (c Command) String() string {
	if c.Pressed {
		return c.Key.String() + " press"
	}
	return c.Key.String() + " release"
}

// LineKind classifies a complete line.
type LineKind int

const (
	// LineIgnored is a line with an unknown key or no content.
	LineIgnored LineKind = iota
	// LineHeartbeat is a liveness probe starting with '.'.
	LineHeartbeat
	// LineCommand decodes to a Command.
	LineCommand
)

func (k LineKind) String() string {
	switch k {
	case LineHeartbeat:
		return "heartbeat"
	case LineCommand:
		return "command"
	default:
		return "ignored"
	}
}

// Classify reports what kind of line this is without building a Command.
func Classify(line []byte) LineKind {
	if len(line) == 0 {
		return LineIgnored
	}
	if line[0] == '.' {
		return LineHeartbeat
	}
	if Key(line[0]).Code() == 0 {
		return LineIgnored
	}
	return LineCommand
}

// Decode interprets a line of the form <Key><State>. The key must be one of
// W, A, S or D in upper case. A state byte of '1' means pressed; anything else,
// including a missing state byte, means released. Bytes after the state are
// ignored. Heartbeats and unknown keys yield ok == false.
func Decode(line []byte) (cmd Command, ok bool) {
	if Classify(line) != LineCommand {
		return Command{}, false
	}
	cmd.Key = Key(line[0])
	cmd.Pressed = len(line) > 1 && line[1] == '1'
	return cmd, true
}
