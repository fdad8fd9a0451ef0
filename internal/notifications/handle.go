package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ynetwork/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxInboundSize = 4096
	outboxSize     = 256
)

// closeFrame is the code and reason sent when the server ends a connection.
type closeFrame struct {
	code int
	text string
}

var (
	closeNormal     = closeFrame{websocket.CloseNormalClosure, ""}
	closeSuperseded = closeFrame{websocket.CloseNormalClosure, "superseded"}
	closeShutdown   = closeFrame{websocket.CloseGoingAway, "server shutting down"}
)

// Sent once when the outbox overflows so the client knows to refetch.
var dropNotice = []byte(`{"type":"messagesDropped","payload":{"reason":"buffer_full"}}`)

// Handle is a user's live realtime connection. The registry holds at most one per user.
type Handle struct {
	UserID uint

	conn *websocket.Conn // nil in tests
	out  chan []byte

	// release runs once the read loop ends; touch on every inbound frame and pong.
	release func(*Handle)
	touch   func()

	closeOnce sync.Once
	closing   closeFrame
	done      chan struct{}
}

func newHandle(userID uint, conn *websocket.Conn) *Handle {
	return &Handle{
		UserID:  userID,
		conn:    conn,
		out:     make(chan []byte, outboxSize),
		release: func(*Handle) {},
		touch:   func() {},
		done:    make(chan struct{}),
	}
}

// Close ends the write loop, which sends a normal close frame. Safe to call repeatedly.
func (h *Handle) Close() {
	h.closeWith(closeNormal)
}

// closeWith is Close with a specific frame. Only the first call's frame is sent.
func (h *Handle) closeWith(f closeFrame) {
	h.closeOnce.Do(func() {
		h.closing = f
		close(h.done)
	})
}

// Done is closed after Close.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Serve runs the connection until the peer leaves or the handle is closed.
// Inbound payloads are discarded; the socket only carries server events.
func (h *Handle) Serve() {
	go h.writeLoop()
	h.readLoop()
}

func (h *Handle) readLoop() {
	defer func() {
		h.release(h)
		_ = h.conn.Close()
	}()

	h.conn.SetReadLimit(maxInboundSize)
	_ = h.conn.SetReadDeadline(time.Now().Add(pongWait))
	h.conn.SetPongHandler(func(string) error {
		h.touch()
		return h.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := h.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				observability.NewWSLogger(hubName).Failed(context.Background(), h.UserID, "read", err)
			}
			return
		}
		h.touch()
	}
}

func (h *Handle) write(messageType int, data []byte) error {
	_ = h.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return h.conn.WriteMessage(messageType, data)
}

func (h *Handle) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = h.conn.Close()
	}()

	for {
		select {
		case <-h.done:
			_ = h.write(websocket.CloseMessage,
				websocket.FormatCloseMessage(h.closing.code, h.closing.text))
			return
		case msg := <-h.out:
			if err := h.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			if err := h.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Queue hands msg to the write loop without blocking. It reports false when the
// handle is closed or its outbox is full; in the latter case a drop notice is queued.
func (h *Handle) Queue(msg []byte) bool {
	select {
	case <-h.done:
		observability.WebSocketBackpressureDrops.WithLabelValues(hubName, "closed").Inc()
		return false
	default:
	}

	select {
	case h.out <- msg:
		return true
	default:
	}

	observability.WebSocketBackpressureDrops.WithLabelValues(hubName, "full").Inc()
	observability.AsyncDropped(context.Background(), "ws_send", "buffer_full", slog.Uint64("user_id", uint64(h.UserID)))
	select {
	case h.out <- dropNotice:
	default:
	}
	return false
}
