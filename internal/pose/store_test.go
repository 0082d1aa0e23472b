package pose

import (
	"sync"
	"testing"
	"time"

	"dataglove"
	"dataglove/internal/calibration"
	"dataglove/internal/protocol"
)

func TestApplyAngleFrame_PartitionsIntoFingers(t *testing.T) {
	s := NewStore(calibration.New(nil))
	raw, err := protocol.ParseAngleLine("C1=10.0,C2=20.0,C3=30.0,C4=40.0,C5=50.0,C6=60.0,C7=70.0," +
		"C8=80.0,C9=90.0,C10=100.0,C11=110.0,C12=120.0,C13=130.0,C14=140.0")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s.ApplyAngleFrame(raw)

	p := s.Snapshot()
	if p.Angles.Index != [3]float64{10, 20, 30} {
		t.Fatalf("index = %v", p.Angles.Index)
	}
	if p.Angles.Middle != [3]float64{40, 50, 60} || p.Angles.Ring != [3]float64{70, 80, 90} {
		t.Fatalf("middle/ring = %v %v", p.Angles.Middle, p.Angles.Ring)
	}
	if p.Angles.Pinky != [3]float64{100, 110, 120} || p.Angles.Thumb != [2]float64{130, 140} {
		t.Fatalf("pinky/thumb = %v %v", p.Angles.Pinky, p.Angles.Thumb)
	}
	if p.AngleSeq != 1 || p.AnglesUpdatedAt.IsZero() {
		t.Fatalf("angle bookkeeping not updated: %+v", p)
	}
	if last, ok := s.LastRawAngles(); !ok || last != raw {
		t.Fatalf("raw frame not retained")
	}
}

func TestApplyAngleFrame_UsesCalibration(t *testing.T) {
	cal := calibration.New(nil)
	var lo, hi dataglove.RawAngleFrame
	for i := range hi {
		hi[i] = 100
	}
	cal.SetMinimum(lo)
	cal.SetMaximum(hi)

	s := NewStore(cal)
	var raw dataglove.RawAngleFrame
	for i := range raw {
		raw[i] = 50
	}
	raw[12] = 150
	s.ApplyAngleFrame(raw)

	p := s.Snapshot()
	if p.Angles.Index[0] != 45 || p.Angles.Thumb[0] != 90 {
		t.Fatalf("calibration not applied: %+v", p.Angles)
	}
	if last, _ := s.LastRawAngles(); last[12] != 150 {
		t.Fatalf("last raw frame must stay unmapped, got %v", last[12])
	}
}

func TestApplyPressureFrame_LeavesAnglesAlone(t *testing.T) {
	s := NewStore(nil)
	before := s.Snapshot()
	s.ApplyPressureFrame(dataglove.RawPressureFrame{10, 20, 30, 40, 50})

	p := s.Snapshot()
	if p.Pressures != (dataglove.RawPressureFrame{10, 20, 30, 40, 50}) || p.PressureSeq != 1 {
		t.Fatalf("pressures = %v seq %d", p.Pressures, p.PressureSeq)
	}
	if p.Angles != before.Angles || p.AngleSeq != 0 {
		t.Fatalf("angles changed on pressure frame")
	}
	if p.Pressure(dataglove.Thumb) != 10 || p.Pressure(dataglove.Pinky) != 50 {
		t.Fatalf("pressure lookup by finger is misaligned")
	}
	if _, ok := s.LastRawAngles(); ok {
		t.Fatalf("no raw angle frame applied yet")
	}
}

func TestNewStore_DefaultPose(t *testing.T) {
	p := NewStore(nil).Snapshot()
	if p != dataglove.DefaultPose() {
		t.Fatalf("new store should start from the default pose, got %+v", p)
	}
}

func TestSnapshot_IsIsolatedCopy(t *testing.T) {
	s := NewStore(nil)
	snap := s.Snapshot()
	snap.Angles.Index[0] = -1
	if s.Snapshot().Angles.Index[0] == -1 {
		t.Fatalf("snapshot shares memory with the store")
	}
}

// Each applied frame sets every channel to the same value; a reader must never see a mix.
func TestSnapshot_NeverTorn(t *testing.T) {
	s := NewStore(nil)
	s.now = func() time.Time { return time.Unix(0, 0) }

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for n := 0; ; n++ {
			select {
			case <-stop:
				return
			default:
			}
			var raw dataglove.RawAngleFrame
			for i := range raw {
				raw[i] = float64(n)
			}
			s.ApplyAngleFrame(raw)
		}
	}()

	for i := 0; i < 5000; i++ {
		p := s.Snapshot()
		if p.AngleSeq == 0 {
			continue
		}
		a := p.Angles
		v := a.Index[0]
		for _, f := range dataglove.Fingers {
			for _, x := range a.Joints(f) {
				if x != v {
					t.Fatalf("torn snapshot: %+v", a)
				}
			}
		}
	}
	close(stop)
	wg.Wait()
}

func TestChannelRange(t *testing.T) {
	if s, e := ChannelRange(dataglove.Thumb); s != 12 || e != 14 {
		t.Fatalf("thumb range = [%d,%d)", s, e)
	}
	if s, e := ChannelRange(dataglove.Index); s != 0 || e != 3 {
		t.Fatalf("index range = [%d,%d)", s, e)
	}
}
