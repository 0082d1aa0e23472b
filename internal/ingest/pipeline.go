// Package ingest runs one read loop per glove source, decodes what arrives and applies
// complete frames to the pose store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"dataglove/internal/logger"
	"dataglove/internal/pose"
	"dataglove/internal/protocol"
	"dataglove/internal/serialport"
)

var (
	// ErrSourceLost wraps the I/O error that halted a source's loop.
	ErrSourceLost = errors.New("source lost")
	// ErrStopTimeout reports loops that did not exit within Config.StopTimeout.
	ErrStopTimeout = errors.New("ingest loops did not stop in time")
	// ErrAlreadyRunning is returned by Start while a previous run is active.
	ErrAlreadyRunning = errors.New("ingest pipeline already running")
)

// Defaults for Config.
const (
	DefaultPollInterval = 10 * time.Millisecond
	DefaultStopTimeout  = time.Second
	defaultReadSize     = 512
)

// Config tunes the read loops.
type Config struct {
	PollInterval time.Duration // wait after an empty read; keeps loops responsive to Stop
	StopTimeout  time.Duration // bounded join wait in Stop
	MaxBuffer    int           // bytes kept per source while waiting for a newline
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.MaxBuffer <= 0 {
		c.MaxBuffer = protocol.DefaultMaxPressureBuffer
	}
	return c
}

// EventType classifies pipeline events.
type EventType string

const (
	EventStateChanged EventType = "STATE_CHANGED"
	EventSourceLost   EventType = "SOURCE_LOST"
)

// Event is delivered to the hook registered with OnEvent, from the loop goroutine.
type Event struct {
	Kind   Kind
	PortID string
	Type   EventType
	From   State
	To     State
	Err    error
	At     time.Time
}

// Attachment is an opened source handed to Start.
type Attachment struct {
	ID   string
	Port serialport.Port
}

type run struct {
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	sources map[Kind]*source
}

// Pipeline owns the read loops. The store is its only shared output; the notification
// channel tells the refresh cycle that something changed.
type Pipeline struct {
	store  *pose.Store
	cfg    Config
	log    *logger.Logger
	notify chan struct{}

	mu      sync.Mutex
	hook    func(Event)
	current *run
	last    *run
}

// New returns a stopped pipeline writing to store.
func New(store *pose.Store, cfg Config, log *logger.Logger) *Pipeline {
	return &Pipeline{
		store:  store,
		cfg:    cfg.withDefaults(),
		log:    logger.OrNop(log),
		notify: make(chan struct{}, 1),
	}
}

// OnEvent registers fn to receive state changes and source losses. fn must not block.
func (p *Pipeline) OnEvent(fn func(Event)) {
	p.mu.Lock()
	p.hook = fn
	p.mu.Unlock()
}

// Notifications signals "new data" after every applied frame. Pending signals coalesce:
// a receiver sees at most one queued value no matter how many frames landed.
func (p *Pipeline) Notifications() <-chan struct{} { return p.notify }

// Start launches one loop per non-nil attachment. Zero attachments is valid: nothing is read.
func (p *Pipeline) Start(ctx context.Context, angle, pressure *Attachment) error {
	p.mu.Lock()
	if p.current != nil {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	r := &run{cancel: cancel, sources: make(map[Kind]*source, 2)}
	if angle != nil {
		r.sources[KindAngle] = newSource(KindAngle, angle.ID, angle.Port)
	}
	if pressure != nil {
		r.sources[KindPressure] = newSource(KindPressure, pressure.ID, pressure.Port)
	}
	r.wg.Add(len(r.sources))
	p.current = r
	p.last = r
	p.mu.Unlock()

	for _, s := range r.sources {
		p.move(s, Connected, nil)
		go p.loop(ctx, &r.wg, s)
	}
	return nil
}

// Stop cancels the loops, waits up to Config.StopTimeout for them to exit and then closes
// every port. Frames already applied stay in the store.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	r := p.current
	p.current = nil
	p.mu.Unlock()
	if r == nil {
		return nil
	}

	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(p.cfg.StopTimeout):
		err = ErrStopTimeout
		p.log.Warnw("ingest_stop_timeout", "timeout", p.cfg.StopTimeout)
	}
	for _, s := range r.sources {
		if cerr := s.close(); cerr != nil {
			p.log.Debugw("ingest_port_close_failed", "source", s.kind, "port", s.id, "err", cerr)
		}
	}
	return err
}

// Running reports whether Start has been called without a matching Stop.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// Connected reports whether kind has a live (connected or reading) source.
func (p *Pipeline) Connected(kind Kind) bool {
	p.mu.Lock()
	r := p.current
	p.mu.Unlock()
	if r == nil {
		return false
	}
	s, ok := r.sources[kind]
	return ok && s.current() != Disconnected
}

// Status returns the angle and pressure source status, in that order.
func (p *Pipeline) Status() []SourceStatus {
	p.mu.Lock()
	r := p.last
	p.mu.Unlock()

	out := make([]SourceStatus, 0, 2)
	for _, k := range []Kind{KindAngle, KindPressure} {
		if r != nil {
			if s, ok := r.sources[k]; ok {
				out = append(out, s.status())
				continue
			}
		}
		out = append(out, SourceStatus{Kind: k, State: Disconnected})
	}
	return out
}

func (p *Pipeline) loop(ctx context.Context, wg *sync.WaitGroup, s *source) {
	defer wg.Done()
	log := p.log.With("source", s.kind, "port", s.id)
	p.move(s, Reading, nil)

	var handle func(chunk []byte)
	switch s.kind {
	case KindAngle:
		handle = p.angleHandler(s, log)
	default:
		handle = p.pressureHandler(s, log)
	}

	buf := make([]byte, defaultReadSize)
	for {
		if ctx.Err() != nil {
			p.move(s, Disconnected, nil)
			return
		}

		n, err := s.port.Read(buf)
		if n > 0 {
			handle(buf[:n])
		}
		if err != nil {
			if ctx.Err() != nil {
				// port closed under us by Stop
				p.move(s, Disconnected, nil)
				return
			}
			p.lose(s, err, log)
			return
		}
		if n == 0 {
			select {
			case <-ctx.Done():
			case <-time.After(p.cfg.PollInterval):
			}
		}
	}
}

// angleHandler splits the stream into lines and applies every valid angle frame.
// A malformed line is logged and dropped; the stream keeps going.
func (p *Pipeline) angleHandler(s *source, log *logger.Logger) func([]byte) {
	lines := newLineBuffer(p.cfg.MaxBuffer)
	return func(chunk []byte) {
		if n := lines.write(chunk); n > 0 {
			s.decodeFailures.Add(1)
			log.Warnw("angle_buffer_overflow", "discarded_bytes", n)
		}
		for {
			line, ok := lines.next()
			if !ok {
				return
			}
			if len(line) == 0 {
				continue
			}
			if !utf8.Valid(line) {
				lines.reset()
				err := fmt.Errorf("%w: angle line %q", protocol.ErrDecodeFailure, line)
				s.decodeFailures.Add(1)
				s.setErr(err)
				log.Warnw("angle_decode_failed", "raw", string(line), "err", err)
				return
			}
			frame, err := protocol.ParseAngleLine(string(line))
			if err != nil {
				s.rejected.Add(1)
				s.setErr(err)
				log.Debugw("angle_frame_rejected", "raw", string(line), "err", err)
				continue
			}
			p.store.ApplyAngleFrame(frame)
			s.frames.Add(1)
			p.signal()
		}
	}
}

// pressureHandler reassembles records across reads. A decode failure clears the whole
// buffer; a rejected record drops only its own line.
func (p *Pipeline) pressureHandler(s *source, log *logger.Logger) func([]byte) {
	pb := protocol.NewPressureBuffer(p.cfg.MaxBuffer)
	return func(chunk []byte) {
		if err := pb.Write(chunk); err != nil {
			s.decodeFailures.Add(1)
			s.setErr(err)
			log.Warnw("pressure_decode_failed", "raw", string(chunk), "err", err)
		}
		for {
			frame, err := pb.Next()
			switch {
			case errors.Is(err, protocol.ErrNeedMore):
				return
			case errors.Is(err, protocol.ErrDecodeFailure):
				s.decodeFailures.Add(1)
				s.setErr(err)
				log.Warnw("pressure_decode_failed", "raw", string(chunk), "err", err)
			case err != nil:
				s.rejected.Add(1)
				s.setErr(err)
				log.Debugw("pressure_frame_rejected", "err", err)
			default:
				p.store.ApplyPressureFrame(frame)
				s.frames.Add(1)
				p.signal()
			}
		}
	}
}

// lose halts the source after a read error and reports it once.
func (p *Pipeline) lose(s *source, cause error, log *logger.Logger) {
	err := fmt.Errorf("%w: %s %q: %v", ErrSourceLost, s.kind, s.id, cause)
	s.setErr(err)
	_ = s.close()
	log.Errorw("ingest_source_lost", "err", cause)
	p.move(s, Disconnected, err)
	p.emit(Event{Kind: s.kind, PortID: s.id, Type: EventSourceLost, From: Reading, To: Disconnected, Err: err, At: time.Now().UTC()})
}

func (p *Pipeline) move(s *source, to State, cause error) {
	from, err := s.transition(to)
	if err != nil {
		p.log.Debugw("ingest_transition_ignored", "err", err)
		return
	}
	p.log.Infow("ingest_source_state", "source", s.kind, "port", s.id, "from", from, "to", to)
	p.emit(Event{Kind: s.kind, PortID: s.id, Type: EventStateChanged, From: from, To: to, Err: cause, At: time.Now().UTC()})
}

func (p *Pipeline) emit(ev Event) {
	p.mu.Lock()
	hook := p.hook
	p.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
}

func (p *Pipeline) signal() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}
