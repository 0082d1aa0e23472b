// Package serialport opens the glove's data sources: real serial ports through
// go.bug.st/serial, and simulated ports for running without hardware.
package serialport

import (
	"errors"
	"time"
)

// Serial parameters of both glove channels.
const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 100 * time.Millisecond
)

var (
	// ErrSourceUnavailable wraps every failure to open a source.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrPortClosed is returned by reads on a closed port.
	ErrPortClosed = errors.New("port closed")
)

// Port is one open byte source. Read returns (0, nil) when no bytes arrived within the
// port's read timeout, so callers can poll without blocking forever.
type Port interface {
	Read(p []byte) (int, error)
	Close() error
}

// Opener opens sources by identifier and lists the identifiers it can open.
type Opener interface {
	Open(id string) (Port, error)
	List() ([]string, error)
}
