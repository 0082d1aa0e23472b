package serialport

import (
	"fmt"
	"math"
	"sync"
	"time"

	"dataglove"
	"dataglove/internal/protocol"
)

// Identifiers of the simulated glove sources.
const (
	SimAnglePort    = "sim:angle"
	SimPressurePort = "sim:pressure"
	simPrefix       = "sim:"
)

const defaultSimRate = 50.0

// SimOpener serves a synthetic glove: an angle port emitting sweeping joint readings and a
// pressure port emitting records split across two reads.
type SimOpener struct {
	RateHz      float64
	ReadTimeout time.Duration

	now func() time.Time
}

// NewSimOpener returns a simulator emitting rateHz lines per second on each port.
func NewSimOpener(rateHz float64, readTimeout time.Duration) *SimOpener {
	if rateHz <= 0 {
		rateHz = defaultSimRate
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &SimOpener{RateHz: rateHz, ReadTimeout: readTimeout, now: time.Now}
}

// Open opens one of the simulated ports.
func (o *SimOpener) Open(id string) (Port, error) {
	var gen func(t float64) [][]byte
	switch id {
	case SimAnglePort:
		gen = simAngleChunks
	case SimPressurePort:
		gen = simPressureChunks
	default:
		return nil, fmt.Errorf("%w: unknown simulated port %q", ErrSourceUnavailable, id)
	}
	return &simPort{
		gen:      gen,
		interval: time.Duration(float64(time.Second) / o.RateHz),
		timeout:  o.ReadTimeout,
		start:    o.now(),
		now:      o.now,
		closed:   make(chan struct{}),
	}, nil
}

// List returns the simulated port identifiers.
func (o *SimOpener) List() ([]string, error) {
	return []string{SimAnglePort, SimPressurePort}, nil
}

type simPort struct {
	gen      func(t float64) [][]byte
	interval time.Duration
	timeout  time.Duration
	start    time.Time
	now      func() time.Time

	mu      sync.Mutex
	next    time.Time
	pending [][]byte

	closeOnce sync.Once
	closed    chan struct{}
}

func (p *simPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.closed:
		return 0, ErrPortClosed
	default:
	}

	if len(p.pending) == 0 {
		now := p.now()
		if p.next.IsZero() {
			p.next = now
		}
		if wait := p.next.Sub(now); wait > 0 {
			if wait > p.timeout {
				wait = p.timeout
			}
			timer := time.NewTimer(wait)
			select {
			case <-p.closed:
				timer.Stop()
				return 0, ErrPortClosed
			case <-timer.C:
			}
			if p.now().Before(p.next) {
				return 0, nil
			}
		}
		p.pending = p.gen(p.next.Sub(p.start).Seconds())
		p.next = p.next.Add(p.interval)
	}

	n := copy(buf, p.pending[0])
	if n < len(p.pending[0]) {
		p.pending[0] = p.pending[0][n:]
	} else {
		p.pending = p.pending[1:]
	}
	return n, nil
}

func (p *simPort) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

// simAngleChunks renders one angle line as a single chunk. Raw readings sweep around a
// per-channel base so calibration has a visible effect.
func simAngleChunks(t float64) [][]byte {
	var f dataglove.RawAngleFrame
	for i := range f {
		phase := float64(i) * math.Pi / 7
		f[i] = 60 + 5*float64(i%3) + 30*math.Sin(2*math.Pi*0.25*t+phase)
	}
	return [][]byte{[]byte(protocol.FormatAngleLine(f))}
}

// simPressureChunks renders one pressure record split in the middle, the way a slow UART
// read would deliver it.
func simPressureChunks(t float64) [][]byte {
	var f dataglove.RawPressureFrame
	for i := range f {
		v := 512 + 511*math.Sin(2*math.Pi*0.5*t+float64(i))
		f[i] = int(math.Round(v))
	}
	line := []byte(protocol.FormatPressureLine(f))
	mid := len(line) / 2
	return [][]byte{line[:mid], line[mid:]}
}
