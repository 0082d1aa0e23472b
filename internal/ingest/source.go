package ingest

import (
	"fmt"
	"sync"
	"sync/atomic"

	"dataglove/internal/serialport"
)

// Kind names one of the two glove data categories.
type Kind string

const (
	KindAngle    Kind = "angle"
	KindPressure Kind = "pressure"
)

// State is the lifecycle state of one source.
type State int

const (
	Disconnected State = iota
	Connected
	Reading
)

var stateNames = [...]string{"disconnected", "connected", "reading"}

func (s State) String() string {
	if s < Disconnected || s > Reading {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// allowed lists the legal transitions. Connected → Disconnected covers a stop that lands
// before the first poll.
var allowed = map[State][]State{
	Disconnected: {Connected},
	Connected:    {Reading, Disconnected},
	Reading:      {Disconnected},
}

// SourceStatus is a point-in-time view of one source.
type SourceStatus struct {
	Kind           Kind   `json:"kind"`
	PortID         string `json:"port_id,omitempty"`
	State          State  `json:"state"`
	Frames         uint64 `json:"frames"`
	Rejected       uint64 `json:"rejected"`
	DecodeFailures uint64 `json:"decode_failures"`
	LastError      string `json:"last_error,omitempty"`
}

type source struct {
	kind Kind
	id   string
	port serialport.Port

	mu      sync.Mutex
	state   State
	lastErr error

	frames         atomic.Uint64
	rejected       atomic.Uint64
	decodeFailures atomic.Uint64

	closeOnce sync.Once
}

func newSource(kind Kind, id string, port serialport.Port) *source {
	return &source{kind: kind, id: id, port: port, state: Disconnected}
}

// transition moves the source to "to", rejecting moves the state table does not allow.
func (s *source) transition(to State) (from State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	from = s.state
	for _, next := range allowed[from] {
		if next == to {
			s.state = to
			return from, nil
		}
	}
	return from, fmt.Errorf("illegal %s source transition %s -> %s", s.kind, from, to)
}

func (s *source) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *source) current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *source) status() SourceStatus {
	s.mu.Lock()
	st := SourceStatus{Kind: s.kind, PortID: s.id, State: s.state}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	s.mu.Unlock()
	st.Frames = s.frames.Load()
	st.Rejected = s.rejected.Load()
	st.DecodeFailures = s.decodeFailures.Load()
	return st
}

// close releases the port once; later calls are no-ops.
func (s *source) close() (err error) {
	s.closeOnce.Do(func() { err = s.port.Close() })
	return err
}
