package dataglove

import (
	"fmt"
	"time"
)

// Channel counts of the two glove streams.
const (
	AngleChannels    = 14
	PressureChannels = 5

	// PressureMax is the nominal top of the pressure ADC range.
	PressureMax = 1023
)

// Finger identifies one digit of the hand. The numeric value is also the
// pressure channel index for that finger.
type Finger int

const (
	Thumb Finger = iota
	Index
	Middle
	Ring
	Pinky
)

// Fingers lists every finger in pressure channel order.
var Fingers = [...]Finger{Thumb, Index, Middle, Ring, Pinky}

var fingerNames = [...]string{"thumb", "index", "middle", "ring", "pinky"}

func (f Finger) String() string {
	if f < Thumb || f > Pinky {
		return fmt.Sprintf("finger(%d)", int(f))
	}
	return fingerNames[f]
}

// RawAngleFrame is one complete reading of the 14 joint channels (C1..C14), in channel order.
type RawAngleFrame [AngleChannels]float64

// RawPressureFrame is one complete reading of the 5 fingertip pressure channels (ch0..ch4).
type RawPressureFrame [PressureChannels]int

// FingerAngles holds joint angles per finger in degrees: 2 joints for the thumb, 3 for the others.
type FingerAngles struct {
	Thumb  [2]float64 `json:"thumb"`
	Index  [3]float64 `json:"index"`
	Middle [3]float64 `json:"middle"`
	Ring   [3]float64 `json:"ring"`
	Pinky  [3]float64 `json:"pinky"`
}

// Joints returns a copy of the joint angles of f.
func (a FingerAngles) Joints(f Finger) []float64 {
	switch f {
	case Thumb:
		return append([]float64(nil), a.Thumb[:]...)
	case Index:
		return append([]float64(nil), a.Index[:]...)
	case Middle:
		return append([]float64(nil), a.Middle[:]...)
	case Ring:
		return append([]float64(nil), a.Ring[:]...)
	case Pinky:
		return append([]float64(nil), a.Pinky[:]...)
	default:
		return nil
	}
}

// HandPose is the renderable hand state. It is a plain value: copies never share memory.
type HandPose struct {
	Angles    FingerAngles     `json:"angles"`
	Pressures RawPressureFrame `json:"pressures"` // indexed by Finger

	AngleSeq           uint64    `json:"angle_seq"`            // frames applied to Angles
	PressureSeq        uint64    `json:"pressure_seq"`         // frames applied to Pressures
	AnglesUpdatedAt    time.Time `json:"angles_updated_at"`    // zero until the first angle frame
	PressuresUpdatedAt time.Time `json:"pressures_updated_at"` // zero until the first pressure frame
}

// Pressure returns the pressure reading of f.
func (p HandPose) Pressure(f Finger) int {
	if f < Thumb || f > Pinky {
		return 0
	}
	return p.Pressures[f]
}

// DefaultPose is the resting pose shown before any angle data arrives.
func DefaultPose() HandPose {
	return HandPose{
		Angles: FingerAngles{
			Thumb:  [2]float64{180, 180},
			Index:  [3]float64{30, 40, 50},
			Middle: [3]float64{35, 45, 55},
			Ring:   [3]float64{40, 50, 60},
			Pinky:  [3]float64{45, 55, 65},
		},
	}
}

// CalibrationProfile is the stored form of the calibration bounds. A nil bound is unset.
type CalibrationProfile struct {
	Min       *RawAngleFrame `json:"min"`
	Max       *RawAngleFrame `json:"max"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// GloveEvent is a single session journal entry.
type GloveEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // CONNECT | DISCONNECT | SOURCE_LOST | CALIBRATION_MIN | CALIBRATION_MAX | CALIBRATION_RESET | REFRESH_RATE
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}

// Operator is an account allowed to drive the control API when auth is enabled.
type Operator struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
