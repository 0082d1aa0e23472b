package serialport

import (
	"fmt"
	"sort"
	"time"

	"go.bug.st/serial"
)

// SerialOpener opens physical serial ports.
type SerialOpener struct {
	BaudRate    int
	ReadTimeout time.Duration

	// overridable in tests
	open  func(name string, mode *serial.Mode) (serial.Port, error)
	ports func() ([]string, error)
}

// NewSerialOpener returns an opener with the given line settings; zero values select
// DefaultBaudRate and DefaultReadTimeout.
func NewSerialOpener(baud int, readTimeout time.Duration) *SerialOpener {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &SerialOpener{
		BaudRate:    baud,
		ReadTimeout: readTimeout,
		open:        serial.Open,
		ports:       serial.GetPortsList,
	}
}

// Open opens id as an 8N1 serial port with the configured read timeout.
func (o *SerialOpener) Open(id string) (Port, error) {
	mode := &serial.Mode{
		BaudRate: o.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := o.open(id, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %v", ErrSourceUnavailable, id, err)
	}
	if err := p.SetReadTimeout(o.ReadTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("%w: set read timeout on %q: %v", ErrSourceUnavailable, id, err)
	}
	// drop whatever the glove sent before we were listening
	_ = p.ResetInputBuffer()
	return p, nil
}

// List returns the serial ports present on the system, sorted.
func (o *SerialOpener) List() ([]string, error) {
	names, err := o.ports()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	sort.Strings(names)
	return names, nil
}
