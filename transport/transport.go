// Package transport provides the byte-stream transports the
// dispatcher reads commands from: a serial port and stdio.
//
// Read contract: a Read may return (0, nil), meaning "no data yet"
// (the serial read timeout expired). The dispatcher treats that as a
// poll miss, not an error.
package transport

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.bug.st/serial"
)

// DefaultBaud is the reference device's serial speed.
const DefaultBaud = 115200

// OpenSerial opens the serial port at the given baud rate. When
// readTimeout is positive, idle reads return (0, nil) after it
// expires; when zero, reads block until data arrives.
func OpenSerial(port string, baud int, readTimeout time.Duration) (io.ReadWriteCloser, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", port, err)
	}
	if readTimeout > 0 {
		if err := p.SetReadTimeout(readTimeout); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", port, err)
		}
	}
	return p, nil
}

// DetectPort guesses a likely USB serial port from the system port
// list. Pass an explicit port instead when more than one device is
// attached.
func DetectPort() (string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return "", fmt.Errorf("list serial ports: %w", err)
	}
	for _, name := range ports {
		for _, hint := range []string{"usbserial", "usbmodem", "ttyUSB", "ttyACM", "SLAB"} {
			if strings.Contains(name, hint) {
				return name, nil
			}
		}
	}
	return "", fmt.Errorf("no serial port auto-detected; pass one explicitly")
}

// Stdio adapts the process's stdin/stdout into a transport, useful for
// driving the dispatcher interactively or from a pipe.
type Stdio struct {
	in  io.Reader
	out io.Writer
}

// NewStdio returns a transport over os.Stdin and os.Stdout.
func NewStdio() *Stdio {
	return &Stdio{in: os.Stdin, out: os.Stdout}
}

func (s *Stdio) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s *Stdio) Write(p []byte) (int, error) { return s.out.Write(p) }
