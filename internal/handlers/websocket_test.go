package handlers

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dataglove"
	"dataglove/internal/ingest"
	"dataglove/internal/service"

	"github.com/fxamacker/cbor/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type poseMessage struct {
	Type string             `json:"type" cbor:"type"`
	Data dataglove.HandPose `json:"data" cbor:"data"`
}

type lostMessage struct {
	Type string            `json:"type" cbor:"type"`
	Data sourceLostPayload `json:"data" cbor:"data"`
}

func startWSServer(t *testing.T, pose dataglove.HandPose) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub(nil)
	h := NewHandler(&service.Service{Monitoring: &mockMonitoring{pose: pose}}, hub, Options{}, nil)
	srv := httptest.NewServer(h.InitRoutes())
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebsocket_InitialPoseThenFreshTicks(t *testing.T) {
	initial := dataglove.DefaultPose()
	hub, url := startWSServer(t, initial)
	conn := dial(t, url)

	var msg poseMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if msg.Type != msgPose || msg.Data.Angles != initial.Angles {
		t.Fatalf("unexpected initial message %+v", msg)
	}
	waitClients(t, hub, 1)

	// a tick without new data sends nothing; the next fresh one must be what arrives
	stale := initial
	stale.Pressures[0] = 111
	hub.Render(stale, false)
	fresh := initial
	fresh.Pressures[0] = 222
	fresh.PressureSeq = 1
	hub.Render(fresh, true)

	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read tick: %v", err)
	}
	if msg.Data.Pressures[0] != 222 || msg.Data.PressureSeq != 1 {
		t.Fatalf("expected the fresh pose, got %+v", msg.Data)
	}
}

func TestWebsocket_SourceLost(t *testing.T) {
	hub, url := startWSServer(t, dataglove.DefaultPose())
	conn := dial(t, url)
	var first poseMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	waitClients(t, hub, 1)

	// state changes are not forwarded
	hub.SourceLost(ingest.Event{Type: ingest.EventStateChanged, Kind: ingest.KindAngle})
	hub.SourceLost(ingest.Event{
		Type:   ingest.EventSourceLost,
		Kind:   ingest.KindPressure,
		PortID: "COM7",
		Err:    errors.New("unplugged"),
		At:     time.Now().UTC(),
	})

	var msg lostMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != msgSourceLost || msg.Data.Source != "pressure" || msg.Data.Port != "COM7" || msg.Data.Error != "unplugged" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestWebsocket_CBORFormat(t *testing.T) {
	pose := dataglove.DefaultPose()
	pose.Pressures = dataglove.RawPressureFrame{10, 20, 30, 40, 50}
	hub, url := startWSServer(t, pose)
	conn := dial(t, url+"?format=cbor")

	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Fatalf("message type = %d, want binary", kind)
	}
	var msg poseMessage
	if err := cbor.Unmarshal(data, &msg); err != nil {
		t.Fatalf("cbor decode: %v", err)
	}
	if msg.Type != msgPose || msg.Data.Pressures != pose.Pressures || msg.Data.Angles.Thumb != pose.Angles.Thumb {
		t.Fatalf("unexpected cbor message %+v", msg)
	}
	waitClients(t, hub, 1)
}

func TestWebsocket_UnregisterOnClose(t *testing.T) {
	hub, url := startWSServer(t, dataglove.DefaultPose())
	a := dial(t, url)
	b := dial(t, url)
	var msg poseMessage
	_ = a.ReadJSON(&msg)
	_ = b.ReadJSON(&msg)
	waitClients(t, hub, 2)

	_ = a.Close()
	waitClients(t, hub, 1)
}

func TestHub_SlowClientDrops(t *testing.T) {
	hub := NewHub(nil)
	c := hub.register()
	defer hub.unregister(c)

	for i := 0; i < sendBuffer+3; i++ {
		hub.Render(dataglove.DefaultPose(), true)
	}
	if len(c.send) != sendBuffer {
		t.Fatalf("queued = %d, want %d", len(c.send), sendBuffer)
	}
	if hub.Dropped() != 3 {
		t.Fatalf("dropped = %d, want 3", hub.Dropped())
	}
}
