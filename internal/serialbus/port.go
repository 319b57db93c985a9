// Package serialbus owns the UART link to the particulate sensor. The
// acquisition loop is its only user: it opens the port at the start of a
// cycle, reads in small chunks bounded by the read timeout and closes it
// again before sleeping.
package serialbus

import (
	"io"
	"time"
)

// SerialPorter is the slice of a serial port the bus needs.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
	// SetReadTimeout bounds every Read. A Read that times out returns
	// 0, nil.
	SetReadTimeout(timeout time.Duration) error
}

// SerialPortMode defines serial port configuration parameters.
type SerialPortMode struct {
	BaudRate    int
	DataBits    int
	Parity      Parity
	StopBits    StopBits
	ReadTimeout time.Duration
}

// Parity defines serial port parity options.
type Parity int

const (
	NoParity Parity = iota
	OddParity
	EvenParity
)

// StopBits defines serial port stop bit options.
type StopBits int

const (
	OneStopBit StopBits = iota
	TwoStopBits
)

// DefaultSerialPortMode returns 9600 8N1 with a 250ms read timeout, the
// PMS5003 factory setting.
func DefaultSerialPortMode() SerialPortMode {
	return SerialPortMode{
		BaudRate:    9600,
		DataBits:    8,
		Parity:      NoParity,
		StopBits:    OneStopBit,
		ReadTimeout: 250 * time.Millisecond,
	}
}

// SerialPortFactory opens serial ports. Tests and dev mode swap it out.
type SerialPortFactory interface {
	Open(path string, mode SerialPortMode) (SerialPorter, error)
}
