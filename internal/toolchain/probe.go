package toolchain

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tarm/serial"
)

// ErrPortUnavailable is returned when the programmer's serial port cannot be opened.
var ErrPortUnavailable = errors.New("serial port unavailable")

// Prober checks that a serial device is present before it is handed to the
// programmer.
type Prober interface {
	Probe(port string, baud int) error
}

// SerialProber opens and immediately closes the port.
type SerialProber struct {
	Logger *slog.Logger
}

// Probe opens port at baud and closes it again.
func (p SerialProber) Probe(port string, baud int) error {
	c := &serial.Config{
		Name:        port,
		Baud:        baud,
		ReadTimeout: 100 * time.Millisecond,
	}
	s, err := serial.OpenPort(c)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPortUnavailable, port, err)
	}
	if err := s.Close(); err != nil && p.Logger != nil {
		p.Logger.Warn("failed to close serial port after probe", "port", port, "error", err)
	}
	return nil
}
