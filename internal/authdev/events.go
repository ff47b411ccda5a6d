package authdev

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type eventFrame struct {
	Event   string        `json:"event"`
	Session *frameSession `json:"session,omitempty"`
}

type frameSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         wireUser  `json:"user"`
}

// eventHub fans lifecycle events out to every connected websocket client.
type eventHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]chan eventFrame
}

func newEventHub() *eventHub {
	return &eventHub{conns: make(map[*websocket.Conn]chan eventFrame)}
}

func (h *eventHub) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("events: websocket upgrade failed: %v", err)
		return
	}

	send := make(chan eventFrame, 16)

	h.mu.Lock()
	h.conns[conn] = send
	h.mu.Unlock()

	go h.writeLoop(conn, send)
	go h.readLoop(conn)
}

func (h *eventHub) writeLoop(conn *websocket.Conn, send chan eventFrame) {
	for frame := range send {
		if err := conn.WriteJSON(frame); err != nil {
			h.drop(conn)
			return
		}
	}
}

// readLoop discards client frames and detects disconnects. The stream is
// one-way; clients never send application messages.
func (h *eventHub) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.drop(conn)
			return
		}
	}
}

func (h *eventHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	send, ok := h.conns[conn]
	if ok {
		delete(h.conns, conn)
	}
	h.mu.Unlock()

	if ok {
		close(send)
		conn.Close()
	}
}

// broadcast fans one event out to all clients. Slow clients whose buffers
// are full miss the frame rather than stalling the rest.
func (h *eventHub) broadcast(event string, sess *session, acct *account) {
	frame := eventFrame{Event: event}
	if sess != nil && acct != nil {
		frame.Session = &frameSession{
			AccessToken:  sess.AccessToken,
			RefreshToken: sess.RefreshToken,
			ExpiresAt:    sess.ExpiresAt,
			User:         userPayload(acct),
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, send := range h.conns {
		select {
		case send <- frame:
		default:
			log.Printf("events: dropping frame for slow client %s", conn.RemoteAddr())
		}
	}
}
