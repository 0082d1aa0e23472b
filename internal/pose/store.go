// Package pose holds the latest known hand state shared between the ingest loops and the
// refresh cycle.
package pose

import (
	"sync"
	"time"

	"dataglove"
)

// Mapper rescales a whole raw angle frame. *calibration.Map satisfies it.
type Mapper interface {
	MapFrame(raw dataglove.RawAngleFrame) dataglove.RawAngleFrame
}

// Joint index ranges of each finger inside an angle frame.
var fingerChannels = map[dataglove.Finger][2]int{
	dataglove.Index:  {0, 3},
	dataglove.Middle: {3, 6},
	dataglove.Ring:   {6, 9},
	dataglove.Pinky:  {9, 12},
	dataglove.Thumb:  {12, 14},
}

// Store owns the current HandPose and the most recent raw angle frame.
//
// Angles (and the raw frame) are written only by the angle loop, pressures only by the
// pressure loop. Every write replaces its fields under the lock, so Snapshot never observes
// a partially applied frame.
type Store struct {
	mu      sync.RWMutex
	pose    dataglove.HandPose
	lastRaw dataglove.RawAngleFrame
	hasRaw  bool

	mapper Mapper
	now    func() time.Time
}

// NewStore returns a store holding the default pose. mapper may be nil for pass-through.
func NewStore(mapper Mapper) *Store {
	return &Store{
		pose:   dataglove.DefaultPose(),
		mapper: mapper,
		now:    time.Now,
	}
}

// ApplyAngleFrame maps raw through the calibration, splits it into finger joints and
// replaces every finger's angles at once.
func (s *Store) ApplyAngleFrame(raw dataglove.RawAngleFrame) {
	mapped := raw
	if s.mapper != nil {
		mapped = s.mapper.MapFrame(raw)
	}
	angles := partition(mapped)
	ts := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pose.Angles = angles
	s.pose.AngleSeq++
	s.pose.AnglesUpdatedAt = ts
	s.lastRaw = raw
	s.hasRaw = true
}

// ApplyPressureFrame replaces the pressure vector.
func (s *Store) ApplyPressureFrame(frame dataglove.RawPressureFrame) {
	ts := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pose.Pressures = frame
	s.pose.PressureSeq++
	s.pose.PressuresUpdatedAt = ts
}

// Snapshot returns a copy of the current pose.
func (s *Store) Snapshot() dataglove.HandPose {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pose
}

// LastRawAngles returns the most recent raw angle frame, if any has been applied.
func (s *Store) LastRawAngles() (dataglove.RawAngleFrame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRaw, s.hasRaw
}

func partition(mapped dataglove.RawAngleFrame) dataglove.FingerAngles {
	var a dataglove.FingerAngles
	copy(a.Index[:], mapped[fingerChannels[dataglove.Index][0]:fingerChannels[dataglove.Index][1]])
	copy(a.Middle[:], mapped[fingerChannels[dataglove.Middle][0]:fingerChannels[dataglove.Middle][1]])
	copy(a.Ring[:], mapped[fingerChannels[dataglove.Ring][0]:fingerChannels[dataglove.Ring][1]])
	copy(a.Pinky[:], mapped[fingerChannels[dataglove.Pinky][0]:fingerChannels[dataglove.Pinky][1]])
	copy(a.Thumb[:], mapped[fingerChannels[dataglove.Thumb][0]:fingerChannels[dataglove.Thumb][1]])
	return a
}

// ChannelRange returns the [start, end) angle channel range of finger f.
func ChannelRange(f dataglove.Finger) (start, end int) {
	r := fingerChannels[f]
	return r[0], r[1]
}
