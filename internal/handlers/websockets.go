package handlers

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"dataglove"
	"dataglove/internal/ingest"
	"dataglove/internal/logger"

	"github.com/fxamacker/cbor/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12 // 4 KB
	sendBuffer = 8       // queued envelopes per client before drops
)

// Message types on /ws.
const (
	msgPose       = "pose"
	msgSourceLost = "source_lost"
)

const formatCBOR = "cbor"

type wsEnvelope struct {
	Type  string      `json:"type" cbor:"type"`
	Data  interface{} `json:"data,omitempty" cbor:"data,omitempty"`
	Error string      `json:"error,omitempty" cbor:"error,omitempty"`
}

type sourceLostPayload struct {
	Source string    `json:"source" cbor:"source"`
	Port   string    `json:"port" cbor:"port"`
	Error  string    `json:"error,omitempty" cbor:"error,omitempty"`
	At     time.Time `json:"at" cbor:"at"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // origins are enforced by the CORS layer
}

type wsClient struct {
	send chan wsEnvelope
}

// Hub fans refresh ticks out to websocket clients. It implements refresh.Renderer and
// never blocks the refresh cycle: a client that falls behind loses messages.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	dropped atomic.Uint64
	log     *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{clients: make(map[*wsClient]struct{}), log: logger.OrNop(log)}
}

// Render broadcasts pose when fresh. Ticks without new data send nothing.
func (h *Hub) Render(pose dataglove.HandPose, fresh bool) {
	if !fresh {
		return
	}
	h.broadcast(wsEnvelope{Type: msgPose, Data: pose})
}

// SourceLost tells every client that a source stopped. Other pipeline events are ignored.
func (h *Hub) SourceLost(ev ingest.Event) {
	if ev.Type != ingest.EventSourceLost {
		return
	}
	p := sourceLostPayload{Source: string(ev.Kind), Port: ev.PortID, At: ev.At}
	if ev.Err != nil {
		p.Error = ev.Err.Error()
	}
	h.broadcast(wsEnvelope{Type: msgSourceLost, Data: p})
}

// Clients returns the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped counts envelopes discarded for slow clients.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) broadcast(env wsEnvelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- env:
		default:
			if h.dropped.Add(1)%100 == 1 {
				h.log.Warnw("ws_client_slow", "dropped_total", h.dropped.Load(), "type", env.Type)
			}
		}
	}
}

func (h *Hub) register() *wsClient {
	c := &wsClient{send: make(chan wsEnvelope, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// @Summary      Pose stream
// @Description  Websocket. Sends the current pose, then one "pose" message per refresh tick with new data and "source_lost" when a source fails. ?format=cbor switches to binary CBOR frames.
// @Tags         pose
// @Param        format  query  string  false  "json (default) or cbor"
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	binary := c.Query("format") == formatCBOR

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorw("ws_upgrade_failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	client := h.hub.register()
	defer h.hub.unregister(client)
	h.log.Infow("ws_client_connected", "remote", c.Request.RemoteAddr, "binary", binary, "clients", h.hub.Clients())

	done := make(chan struct{})
	go h.startReader(conn, done)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := writeEnvelope(conn, wsEnvelope{Type: msgPose, Data: h.services.GetCurrentPose()}, binary); err != nil {
		h.log.Infow("ws_write_failed_initial", "err", err)
		return
	}

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.log.Infow("ws_ping_failed", "err", err)
				return
			}
		case env := <-client.send:
			if err := writeEnvelope(conn, env, binary); err != nil {
				h.log.Infow("ws_write_failed", "type", env.Type, "err", err)
				return
			}
		}
	}
}

// startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.log.Infow("ws_read_closed", "err", err)
			return
		}
	}
}

func writeEnvelope(conn *websocket.Conn, env wsEnvelope, binary bool) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if !binary {
		return conn.WriteJSON(env)
	}
	b, err := cbor.Marshal(env)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, b)
}
