// Package serial provides a minimal, Linux-only serial port transport
// designed for low-latency delivery of raw bytes from embedded devices.
//
// It is the transport half of the serial-wasd bridge: a [Port] is bound to a
// wasd.Receiver and hands over every chunk as soon as read(2) returns it,
// leaving line framing to the receiver.
//
// Features:
//   - Raw syscall-based serial I/O on Linux, no buffering delays
//   - Raw termios: 8N1, no echo, no canonical mode, no CR/LF translation
//   - Self-pipe mechanism for killability
//   - Quiescent Unbind: no Receive call is in flight once it returns
//   - Optional DTR pulse to reset Arduino-style boards
//   - Optional advisory lock so two bridges never share a device
//   - PTY-based tests for reliability
//
// This package does **not** support Windows.
//
// Example usage:
//
//	port, err := serial.Open(serial.Config{
//	    Device:   "/dev/ttyACM0",
//	    BaudRate: 9600,
//	    LockDir:  "/run/lock",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	if err := port.Bind(receiver); err != nil {
//	    log.Fatal(err)
//	}
//
//	<-port.Done() // device unplugged
//	log.Println("read error:", port.Err())
package serial
