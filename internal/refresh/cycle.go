// Package refresh drives rendering at a fixed, selectable cadence. It pulls one pose
// snapshot per tick and never waits on I/O.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dataglove"
	"dataglove/internal/logger"
)

// ErrUnsupportedRate is returned for a rate outside Rates.
var ErrUnsupportedRate = errors.New("unsupported refresh rate")

// Rates are the selectable refresh rates in updates per second.
var Rates = []int{1, 5, 10, 30, 60}

// DefaultRate is used when no rate is configured.
const DefaultRate = 60

// Snapshotter is the pose source; pose.Store satisfies it.
type Snapshotter interface {
	Snapshot() dataglove.HandPose
}

// Renderer consumes one snapshot per tick. fresh is true when at least one frame was
// applied since the previous tick.
type Renderer interface {
	Render(pose dataglove.HandPose, fresh bool)
}

// RendererFunc adapts a plain function to Renderer.
type RendererFunc func(pose dataglove.HandPose, fresh bool)

func (f RendererFunc) Render(pose dataglove.HandPose, fresh bool) { f(pose, fresh) }

// Supported reports whether fps is one of Rates.
func Supported(fps int) bool {
	for _, r := range Rates {
		if r == fps {
			return true
		}
	}
	return false
}

// Interval is the tick period for fps.
func Interval(fps int) time.Duration {
	return time.Second / time.Duration(fps)
}

// Cycle is the single consumer of pose snapshots.
type Cycle struct {
	src    Snapshotter
	notify <-chan struct{}
	render Renderer
	log    *logger.Logger

	mu      sync.Mutex
	fps     int
	changed chan struct{}
}

// New builds a cycle reading src, woken by notify and drawing through r.
func New(src Snapshotter, notify <-chan struct{}, r Renderer, fps int, log *logger.Logger) (*Cycle, error) {
	if fps == 0 {
		fps = DefaultRate
	}
	if !Supported(fps) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedRate, fps)
	}
	return &Cycle{
		src:     src,
		notify:  notify,
		render:  r,
		log:     logger.OrNop(log),
		fps:     fps,
		changed: make(chan struct{}, 1),
	}, nil
}

// Rate returns the current refresh rate.
func (c *Cycle) Rate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

// SetRate switches the cadence; a running cycle picks it up on its next tick.
func (c *Cycle) SetRate(fps int) error {
	if !Supported(fps) {
		return fmt.Errorf("%w: %d (want one of %v)", ErrUnsupportedRate, fps, Rates)
	}
	c.mu.Lock()
	prev := c.fps
	c.fps = fps
	c.mu.Unlock()

	if prev != fps {
		c.log.Infow("refresh_rate_changed", "from", prev, "to", fps)
		select {
		case c.changed <- struct{}{}:
		default:
		}
	}
	return nil
}

// Run ticks until ctx is canceled.
func (c *Cycle) Run(ctx context.Context) {
	t := time.NewTicker(Interval(c.Rate()))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.changed:
			t.Reset(Interval(c.Rate()))
		case <-t.C:
			c.Tick()
		}
	}
}

// Tick performs one refresh step and reports whether new data had arrived.
func (c *Cycle) Tick() bool {
	fresh := c.drain()
	c.render.Render(c.src.Snapshot(), fresh)
	return fresh
}

// drain empties the notification channel without blocking.
func (c *Cycle) drain() bool {
	fresh := false
	for {
		select {
		case <-c.notify:
			fresh = true
		default:
			return fresh
		}
	}
}
