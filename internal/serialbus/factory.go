package serialbus

import (
	"fmt"

	"go.bug.st/serial"
)

// RealPortFactory opens hardware UARTs through go.bug.st/serial.
type RealPortFactory struct{}

func (RealPortFactory) Open(path string, mode SerialPortMode) (SerialPorter, error) {
	port, err := serial.Open(path, serialMode(mode))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if mode.ReadTimeout > 0 {
		if err := port.SetReadTimeout(mode.ReadTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", path, err)
		}
	}
	return port, nil
}
