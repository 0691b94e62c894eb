package wasd

import "fmt"

//go:generate mockgen -destination=mocks/mock_wasd.go -package=mocks . Sink,Device,Registrar,Transport

// BusRS232 is the Linux input bus type for serial-attached devices.
const BusRS232 uint16 = 0x13

// Sink accepts key state reports. Sync marks the end of an event frame.
type Sink interface {
	ReportKey(code uint16, pressed bool) error
	Sync() error
}

// Device is a registered Sink that can be removed from the host.
type Device interface {
	Sink
	Unregister() error
}

// Identity describes how a virtual keyboard presents itself to the host.
type Identity struct {
	Name    string
	BusType uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// DefaultIdentity is the identity used when Options.Identity is empty.
var DefaultIdentity = Identity{Name: "serial-wasd", BusType: BusRS232}

// Registrar creates virtual keyboards declaring the given keys.
type Registrar interface {
	Register(id Identity, keys []Key) (Device, error)
}

// Emit reports cmd to s and closes the event frame. Repeated commands produce
// repeated events; debouncing is left to the sink.
func Emit(s Sink, cmd Command) error {
	if err := s.ReportKey(cmd.Key.Code(), cmd.Pressed); err != nil {
		return fmt.Errorf("report %s: %w", cmd, err)
	}
	if err := s.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}
