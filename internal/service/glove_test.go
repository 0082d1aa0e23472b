package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"dataglove"
	"dataglove/internal/ingest"
	"dataglove/internal/refresh"
	"dataglove/internal/serialport"
)

func TestConnect_Validation(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	if err := r.svc.Connect(ctx, ConnectParams{}); !errors.Is(err, ErrNoSourceSelected) {
		t.Fatalf("want ErrNoSourceSelected, got %v", err)
	}
	if err := r.svc.Connect(ctx, ConnectParams{AngleSource: "COM1", PressureSource: " COM1 "}); !errors.Is(err, ErrDuplicateSource) {
		t.Fatalf("want ErrDuplicateSource, got %v", err)
	}
	if err := r.svc.Connect(ctx, ConnectParams{AngleSource: "COM9"}); !errors.Is(err, serialport.ErrSourceUnavailable) {
		t.Fatalf("want ErrSourceUnavailable, got %v", err)
	}
	if r.pipeline.Running() {
		t.Fatalf("failed connect must not start the pipeline")
	}
}

func TestConnect_PressureOpenFailureReleasesAngle(t *testing.T) {
	r := newRig(t)
	err := r.svc.Connect(context.Background(), ConnectParams{AngleSource: "COM1", PressureSource: "COM9"})
	if !errors.Is(err, serialport.ErrSourceUnavailable) {
		t.Fatalf("want ErrSourceUnavailable, got %v", err)
	}
	if !r.angle.isClosed() {
		t.Fatalf("angle port opened before the failure must be closed")
	}
}

func TestConnectDisconnect_Journal(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	if err := r.svc.Connect(ctx, ConnectParams{AngleSource: "COM1", PressureSource: "COM2"}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := r.svc.Connect(ctx, ConnectParams{AngleSource: "COM1"}); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("want ErrAlreadyConnected, got %v", err)
	}

	st := r.svc.Sources()
	if len(st) != 2 || st[0].Kind != ingest.KindAngle || st[0].PortID != "COM1" || st[1].PortID != "COM2" {
		t.Fatalf("unexpected statuses %+v", st)
	}

	if err := r.svc.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if err := r.svc.Disconnect(ctx); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("want ErrNotConnected, got %v", err)
	}
	if !r.angle.isClosed() || !r.pressure.isClosed() {
		t.Fatalf("ports must be released on disconnect")
	}
	if got := r.events.types(); !reflect.DeepEqual(got, []string{EventConnect, EventDisconnect}) {
		t.Fatalf("journal = %v", got)
	}
}

func TestConnect_PressureOnly(t *testing.T) {
	r := newRig(t)
	if err := r.svc.Connect(context.Background(), ConnectParams{PressureSource: "COM2"}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	r.pressure.feed("ch0:100ch1:200ch2:300ch3:400ch4:500\n")
	waitUntil(t, "pressure frame", func() bool { return r.svc.GetCurrentPose().PressureSeq == 1 })

	p := r.svc.GetCurrentPose()
	if p.Pressure(dataglove.Pinky) != 500 {
		t.Fatalf("pinky pressure = %d", p.Pressure(dataglove.Pinky))
	}
	if p.Angles != dataglove.DefaultPose().Angles {
		t.Fatalf("angles must stay at the default pose without an angle source")
	}
}

func TestSourceLost_JournalledAndReconnectAllowed(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	r.angle.fail = errors.New("unplugged")

	if err := r.svc.Connect(ctx, ConnectParams{AngleSource: "COM1"}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitUntil(t, "source lost", func() bool { return !r.pipeline.Connected(ingest.KindAngle) })
	waitUntil(t, "journal entry", func() bool {
		for _, typ := range r.events.types() {
			if typ == EventSourceLost {
				return true
			}
		}
		return false
	})

	// the dead run is cleared by the next connect
	r.opener.ports["COM3"] = &feedPort{}
	if err := r.svc.Connect(ctx, ConnectParams{AngleSource: "COM3"}); err != nil {
		t.Fatalf("reconnect after loss: %v", err)
	}
}

func TestListSources(t *testing.T) {
	r := newRig(t)
	got, err := r.svc.ListSources()
	if err != nil || !reflect.DeepEqual(got, []string{"COM1", "COM2"}) {
		t.Fatalf("ListSources = %v, %v", got, err)
	}
	r.opener.listErr = errors.New("no permission")
	if _, err := r.svc.ListSources(); err == nil {
		t.Fatalf("expected list error")
	}
}

func TestCalibration_Preconditions(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	if err := r.svc.SetCalibrationMin(ctx); !errors.Is(err, ErrAngleSourceRequired) {
		t.Fatalf("want ErrAngleSourceRequired, got %v", err)
	}

	if err := r.svc.Connect(ctx, ConnectParams{AngleSource: "COM1"}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitUntil(t, "reading", func() bool { return r.svc.Sources()[0].State == ingest.Reading })
	if err := r.svc.SetCalibrationMax(ctx); !errors.Is(err, ErrNoRawFrame) {
		t.Fatalf("want ErrNoRawFrame, got %v", err)
	}
	if view := r.svc.CalibrationState(); view.Active || view.Min != nil || view.Max != nil {
		t.Fatalf("failed trigger must leave calibration untouched: %+v", view)
	}
	if len(r.calRepo.saved) != 0 {
		t.Fatalf("nothing should be persisted")
	}
}

func TestCalibration_CaptureMapsLaterFrames(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	if err := r.svc.Connect(ctx, ConnectParams{AngleSource: "COM1"}); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	r.angle.feed(angleLine(20))
	waitUntil(t, "first frame", func() bool { return r.svc.GetCurrentPose().AngleSeq == 1 })
	if err := r.svc.SetCalibrationMin(ctx); err != nil {
		t.Fatalf("SetCalibrationMin: %v", err)
	}

	r.angle.feed(angleLine(120))
	waitUntil(t, "second frame", func() bool { return r.svc.GetCurrentPose().AngleSeq == 2 })
	if err := r.svc.SetCalibrationMax(ctx); err != nil {
		t.Fatalf("SetCalibrationMax: %v", err)
	}
	view := r.svc.CalibrationState()
	if !view.Active || view.Min[0] != 20 || view.Max[13] != 120 {
		t.Fatalf("unexpected calibration %+v", view)
	}

	r.angle.feed(angleLine(70))
	waitUntil(t, "calibrated frame", func() bool { return r.svc.GetCurrentPose().AngleSeq == 3 })
	if got := r.svc.GetCurrentPose().Angles.Index; got != [3]float64{45, 45, 45} {
		t.Fatalf("calibrated index = %v, want midpoint", got)
	}

	if err := r.svc.ResetCalibration(ctx); err != nil {
		t.Fatalf("ResetCalibration: %v", err)
	}
	if r.svc.CalibrationState().Active {
		t.Fatalf("reset should deactivate calibration")
	}

	if len(r.calRepo.saved) != 3 {
		t.Fatalf("every trigger should persist the profile, saved %d", len(r.calRepo.saved))
	}
	if last := r.calRepo.saved[2]; last.Min != nil || last.Max != nil {
		t.Fatalf("persisted profile after reset should be empty: %+v", last)
	}
	want := []string{EventConnect, EventCalibrationMin, EventCalibrationMax, EventCalibrationReset}
	if got := r.events.types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("journal = %v, want %v", got, want)
	}
}

func TestCalibration_SaveFailureDoesNotFailTrigger(t *testing.T) {
	r := newRig(t)
	r.calRepo.saveErr = errors.New("disk full")
	if err := r.svc.ResetCalibration(context.Background()); err != nil {
		t.Fatalf("reset should succeed even if the profile cannot be stored: %v", err)
	}
}

func TestRestoreCalibration(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	if ok, err := r.svc.RestoreCalibration(ctx); ok || err != nil {
		t.Fatalf("nothing stored: ok=%v err=%v", ok, err)
	}

	lo, hi := dataglove.RawAngleFrame{}, dataglove.RawAngleFrame{}
	for i := range hi {
		hi[i] = 90
	}
	r.calRepo.stored = &dataglove.CalibrationProfile{Min: &lo, Max: &hi}
	if ok, err := r.svc.RestoreCalibration(ctx); !ok || err != nil {
		t.Fatalf("restore: ok=%v err=%v", ok, err)
	}
	if !r.cal.Active() {
		t.Fatalf("restored profile should activate calibration")
	}

	r.calRepo.loadErr = errors.New("corrupt")
	if _, err := r.svc.RestoreCalibration(ctx); err == nil {
		t.Fatalf("expected load error")
	}
}

func TestRefreshRate(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	if got := r.svc.RefreshRate(); got != 60 {
		t.Fatalf("default rate %d", got)
	}
	if err := r.svc.SetRefreshRate(ctx, 7); !errors.Is(err, refresh.ErrUnsupportedRate) {
		t.Fatalf("want ErrUnsupportedRate, got %v", err)
	}
	if err := r.svc.SetRefreshRate(ctx, 10); err != nil {
		t.Fatalf("SetRefreshRate: %v", err)
	}
	if err := r.svc.SetRefreshRate(ctx, 10); err != nil {
		t.Fatalf("SetRefreshRate same value: %v", err)
	}
	if r.svc.RefreshRate() != 10 {
		t.Fatalf("rate not applied")
	}
	if got := r.events.types(); !reflect.DeepEqual(got, []string{EventRefreshRate}) {
		t.Fatalf("only the actual change is journalled, got %v", got)
	}
}

func TestGetCurrentPose_DefaultBeforeData(t *testing.T) {
	r := newRig(t)
	if got := r.svc.GetCurrentPose(); got != dataglove.DefaultPose() {
		t.Fatalf("want default pose, got %+v", got)
	}
}

func TestJournal_AppendFailureIsSwallowed(t *testing.T) {
	r := newRig(t)
	r.events.appendErr = errors.New("db gone")
	if err := r.svc.SetRefreshRate(context.Background(), 5); err != nil {
		t.Fatalf("journal failure must not fail the operation: %v", err)
	}
}

func TestJournal_RecordsOperator(t *testing.T) {
	r := newRig(t)
	ctx := WithOperator(context.Background(), 17)
	if err := r.svc.SetRefreshRate(ctx, 10); err != nil {
		t.Fatalf("SetRefreshRate: %v", err)
	}
	r.events.mu.Lock()
	defer r.events.mu.Unlock()
	if len(r.events.appended) != 1 {
		t.Fatalf("appended = %d", len(r.events.appended))
	}
	meta, ok := r.events.appended[0].Metadata.(map[string]any)
	if !ok || meta["operator_id"] != 17 {
		t.Fatalf("metadata = %#v", r.events.appended[0].Metadata)
	}
}
