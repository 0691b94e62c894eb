// Package wasd bridges a line-oriented serial byte stream to key press and
// release events on a virtual keyboard.
//
// A peripheral (typically an Arduino-style joystick) sends short ASCII lines:
//
//	W1\n   press W
//	W0\n   release W
//	.\n    heartbeat, ignored
//
// Bytes arrive in arbitrary chunks through a [Transport]. Each [Session] owns a
// bounded [LineBuffer] that reassembles lines, a [Device] registered through a
// [Registrar], and a mutex that serialises every chunk, including the decode
// and emit work it triggers. Session teardown takes the same mutex, so a chunk
// is either fully processed before Close or dropped after it.
//
// Features:
//   - Bounded accumulation: at most capacity-1 bytes per line, excess is dropped
//   - CR is ignored, LF terminates a line
//   - Unknown keys, heartbeats and short lines are absorbed silently
//   - Receive before Open or after Close is a no-op
//   - Multiple independent sessions via [Manager]
//
// Example usage:
//
//	port, err := serial.Open(serial.Config{Device: "/dev/ttyACM0", BaudRate: 9600})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	mgr := wasd.NewManager(uinput.NewRegistrar(""), wasd.Options{})
//	sess, err := mgr.Open(port)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Close(sess)
//
//	<-port.Done()
package wasd
