package serialbus

import (
	"errors"
	"fmt"
	"sync"
)

var ErrNotInitialized = errors.New("serial bus not initialized")

// Bus is the serial link as the acquisition loop sees it.
type Bus interface {
	// Init opens (or reopens) the link with the given mode.
	Init(mode SerialPortMode) error
	// Read returns at most max bytes. It returns a nil slice and no error
	// when nothing arrived within the read timeout.
	Read(max int) ([]byte, error)
	// Deinit closes the link. Calling it on a closed bus is a no-op.
	Deinit() error
}

// PortBus is a Bus over a port opened by a SerialPortFactory.
type PortBus struct {
	factory SerialPortFactory
	path    string

	mu   sync.Mutex
	port SerialPorter
}

// NewPortBus returns a closed bus for the device at path.
func NewPortBus(factory SerialPortFactory, path string) *PortBus {
	return &PortBus{factory: factory, path: path}
}

// Path returns the device path the bus opens.
func (b *PortBus) Path() string { return b.path }

func (b *PortBus) Init(mode SerialPortMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.port != nil {
		b.port.Close()
		b.port = nil
	}
	port, err := b.factory.Open(b.path, mode)
	if err != nil {
		return err
	}
	b.port = port
	return nil
}

func (b *PortBus) Read(max int) ([]byte, error) {
	b.mu.Lock()
	port := b.port
	b.mu.Unlock()

	if port == nil {
		return nil, ErrNotInitialized
	}
	buf := make([]byte, max)
	n, err := port.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}
	if n == 0 {
		return nil, nil
	}
	return buf[:n], nil
}

func (b *PortBus) Deinit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.port == nil {
		return nil
	}
	err := b.port.Close()
	b.port = nil
	return err
}
