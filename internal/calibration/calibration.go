// Package calibration rescales raw joint readings into a 0–90° display range using
// per-channel bounds captured from two user-triggered snapshots.
package calibration

import (
	"math"
	"sync"

	"dataglove"
	"dataglove/internal/logger"
)

// Display range of a calibrated channel, in degrees.
const (
	RangeMin = 0.0
	RangeMax = 90.0
	// Midpoint is returned for channels whose calibrated min equals max.
	Midpoint = 45.0
)

var (
	unsetMin = math.Inf(1)
	unsetMax = math.Inf(-1)
)

// State is a read-only view of the calibration bounds.
type State struct {
	Active bool                    `json:"active"`
	MinSet bool                    `json:"min_set"`
	MaxSet bool                    `json:"max_set"`
	Min    dataglove.RawAngleFrame `json:"-"`
	Max    dataglove.RawAngleFrame `json:"-"`
}

// Map holds the calibration bounds. It is safe for concurrent use: triggers come from the
// control surface while the angle ingest loop maps every frame.
type Map struct {
	mu     sync.RWMutex
	min    dataglove.RawAngleFrame
	max    dataglove.RawAngleFrame
	minSet bool
	maxSet bool

	log *logger.Logger
}

// New returns an inactive map.
func New(log *logger.Logger) *Map {
	m := &Map{log: logger.OrNop(log)}
	m.Reset()
	return m
}

// SetMinimum records raw as the lower bound of every channel.
func (m *Map) SetMinimum(raw dataglove.RawAngleFrame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.min = raw
	m.minSet = true
}

// SetMaximum records raw as the upper bound of every channel.
func (m *Map) SetMaximum(raw dataglove.RawAngleFrame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.max = raw
	m.maxSet = true
}

// Reset restores both bounds to unset and deactivates the map.
func (m *Map) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.min {
		m.min[i] = unsetMin
		m.max[i] = unsetMax
	}
	m.minSet = false
	m.maxSet = false
}

// Active reports whether both bounds have been captured since the last reset.
func (m *Map) Active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.minSet && m.maxSet
}

// State returns a copy of the current bounds.
func (m *Map) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return State{
		Active: m.minSet && m.maxSet,
		MinSet: m.minSet,
		MaxSet: m.maxSet,
		Min:    m.min,
		Max:    m.max,
	}
}

// Profile exports the captured bounds, leaving unset ones nil.
func (m *Map) Profile() dataglove.CalibrationProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var p dataglove.CalibrationProfile
	if m.minSet {
		lo := m.min
		p.Min = &lo
	}
	if m.maxSet {
		hi := m.max
		p.Max = &hi
	}
	return p
}

// Restore replaces the bounds with p. Nil bounds in p become unset.
func (m *Map) Restore(p dataglove.CalibrationProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.min {
		m.min[i] = unsetMin
		m.max[i] = unsetMax
	}
	m.minSet, m.maxSet = false, false
	if p.Min != nil {
		m.min, m.minSet = *p.Min, true
	}
	if p.Max != nil {
		m.max, m.maxSet = *p.Max, true
	}
}

// Map rescales value read on channel idx.
//
// Inactive calibration, an out-of-range idx, or an unset bound pass value through unchanged.
// A degenerate channel (min == max) maps to Midpoint. Otherwise the linear rescale of
// [min, max] onto [0, 90] is returned, saturating outside the calibrated envelope.
func (m *Map) Map(value float64, idx int) float64 {
	m.mu.RLock()
	active := m.minSet && m.maxSet
	var lo, hi float64
	if idx >= 0 && idx < dataglove.AngleChannels {
		lo, hi = m.min[idx], m.max[idx]
	}
	m.mu.RUnlock()

	if !active || idx < 0 || idx >= dataglove.AngleChannels {
		return value
	}
	return rescale(value, lo, hi, idx, m.log)
}

// MapFrame rescales every channel of raw under a single consistent view of the bounds.
func (m *Map) MapFrame(raw dataglove.RawAngleFrame) dataglove.RawAngleFrame {
	m.mu.RLock()
	active := m.minSet && m.maxSet
	lo, hi := m.min, m.max
	m.mu.RUnlock()

	if !active {
		return raw
	}
	var out dataglove.RawAngleFrame
	for i, v := range raw {
		out[i] = rescale(v, lo[i], hi[i], i, m.log)
	}
	return out
}

func rescale(value, lo, hi float64, idx int, log *logger.Logger) float64 {
	if math.IsInf(lo, 1) || math.IsInf(hi, -1) {
		return value
	}
	if hi == lo {
		log.Debugw("calibration_degenerate_channel", "channel", idx, "bound", lo)
		return Midpoint
	}
	mapped := (value - lo) / (hi - lo) * RangeMax
	if math.IsNaN(mapped) {
		return RangeMax
	}
	return math.Max(RangeMin, math.Min(RangeMax, mapped))
}
