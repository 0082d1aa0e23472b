package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dataglove"
	"dataglove/internal/calibration"
	"dataglove/internal/ingest"
	"dataglove/internal/pose"
	"dataglove/internal/protocol"
	"dataglove/internal/refresh"
	"dataglove/internal/repository"
	"dataglove/internal/serialport"
)

// fakeEventRepo records appends and serves List from configured outputs.
type fakeEventRepo struct {
	mu        sync.Mutex
	appended  []dataglove.GloveEvent
	appendErr error

	gotFilter repository.EventFilter
	events    []dataglove.GloveEvent
	err       error
	calls     int
}

func (f *fakeEventRepo) Append(_ context.Context, e dataglove.GloveEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, e)
	return f.appendErr
}

func (f *fakeEventRepo) List(_ context.Context, filter repository.EventFilter) ([]dataglove.GloveEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotFilter = filter
	return f.events, f.err
}

func (f *fakeEventRepo) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.appended))
	for _, e := range f.appended {
		out = append(out, e.Type)
	}
	return out
}

type fakeCalibrationRepo struct {
	saved   []dataglove.CalibrationProfile
	saveErr error
	stored  *dataglove.CalibrationProfile
	loadErr error
}

func (f *fakeCalibrationRepo) Save(_ context.Context, p dataglove.CalibrationProfile) error {
	f.saved = append(f.saved, p)
	return f.saveErr
}

func (f *fakeCalibrationRepo) Load(context.Context) (dataglove.CalibrationProfile, bool, error) {
	if f.loadErr != nil {
		return dataglove.CalibrationProfile{}, false, f.loadErr
	}
	if f.stored == nil {
		return dataglove.CalibrationProfile{}, false, nil
	}
	return *f.stored, true, nil
}

// feedPort serves queued lines, then idles; fail makes the next empty read return an error.
type feedPort struct {
	mu     sync.Mutex
	queue  [][]byte
	fail   error
	closed bool
}

func (p *feedPort) feed(s string) {
	p.mu.Lock()
	p.queue = append(p.queue, []byte(s))
	p.mu.Unlock()
}

func (p *feedPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, serialport.ErrPortClosed
	}
	if len(p.queue) > 0 {
		n := copy(buf, p.queue[0])
		p.queue = p.queue[1:]
		p.mu.Unlock()
		return n, nil
	}
	err := p.fail
	p.mu.Unlock()
	if err != nil {
		return 0, err
	}
	time.Sleep(time.Millisecond)
	return 0, nil
}

func (p *feedPort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *feedPort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// fakeOpener hands out feedPorts by id.
type fakeOpener struct {
	ports   map[string]*feedPort
	opened  []string
	listErr error
}

func (o *fakeOpener) Open(id string) (serialport.Port, error) {
	p, ok := o.ports[id]
	if !ok {
		return nil, errors.Join(serialport.ErrSourceUnavailable, errors.New(id))
	}
	o.opened = append(o.opened, id)
	return p, nil
}

func (o *fakeOpener) List() ([]string, error) {
	if o.listErr != nil {
		return nil, o.listErr
	}
	return []string{"COM1", "COM2"}, nil
}

// rig is a real pipeline wired to fake ports and fake repositories.
type rig struct {
	opener   *fakeOpener
	angle    *feedPort
	pressure *feedPort
	cal      *calibration.Map
	store    *pose.Store
	pipeline *ingest.Pipeline
	cycle    *refresh.Cycle
	events   *fakeEventRepo
	calRepo  *fakeCalibrationRepo
	svc      *Service
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{angle: &feedPort{}, pressure: &feedPort{}}
	r.opener = &fakeOpener{ports: map[string]*feedPort{"COM1": r.angle, "COM2": r.pressure}}
	r.cal = calibration.New(nil)
	r.store = pose.NewStore(r.cal)
	r.pipeline = ingest.New(r.store, ingest.Config{PollInterval: time.Millisecond, StopTimeout: time.Second}, nil)
	cycle, err := refresh.New(r.store, r.pipeline.Notifications(), refresh.RendererFunc(func(dataglove.HandPose, bool) {}), 60, nil)
	if err != nil {
		t.Fatalf("refresh.New: %v", err)
	}
	r.cycle = cycle
	r.events = &fakeEventRepo{}
	r.calRepo = &fakeCalibrationRepo{}

	repos := &repository.Repository{EventRepo: r.events, CalibrationRepo: r.calRepo, Auth: &mockAuthRepo{}}
	r.svc = NewService(repos, Glove{
		Opener:      r.opener,
		Ingest:      r.pipeline,
		Store:       r.store,
		Calibration: r.cal,
		Refresh:     r.cycle,
	}, AuthConfig{SigningKey: "test-key"}, nil)
	r.pipeline.OnEvent(r.svc.HandleIngestEvent)
	t.Cleanup(func() { _ = r.pipeline.Stop() })
	return r
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func angleLine(v float64) string {
	var f dataglove.RawAngleFrame
	for i := range f {
		f[i] = v
	}
	return protocol.FormatAngleLine(f)
}
