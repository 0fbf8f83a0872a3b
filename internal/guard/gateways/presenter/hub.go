package presenter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/haukened/navguard/internal/guard/common/log"
	"github.com/haukened/navguard/internal/guard/domain"
)

// Hub is a Presenter that broadcasts prompts to every connected WebSocket
// client. The first answer from any client is forwarded to the bound Sink.
// Prompts still outstanding are replayed to clients that connect late.
type Hub struct {
	logger   log.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	sink    Sink
	clients map[string]*client
	prompts map[string]serverMessage
	closed  bool
}

type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(m serverMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(m)
}

func (c *client) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *client) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	return c.conn.Close()
}

// NewHub creates a Hub. checkOrigin may be nil to accept any origin.
func NewHub(logger log.Logger, checkOrigin func(r *http.Request) bool) *Hub {
	if logger == nil {
		logger = log.GetLogger()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		clients: make(map[string]*client),
		prompts: make(map[string]serverMessage),
	}
}

// Bind sets the Sink that receives client answers.
func (h *Hub) Bind(sink Sink) {
	h.mu.Lock()
	h.sink = sink
	h.mu.Unlock()
}

// Clients returns the number of connected prompt clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Show broadcasts p. It fails with ErrNoPresenter when no client is
// connected or none of them accepted the message.
func (h *Hub) Show(ctx context.Context, p domain.Prompt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := promptMessage(p)

	h.mu.Lock()
	if h.closed || len(h.clients) == 0 {
		h.mu.Unlock()
		return ErrNoPresenter
	}
	h.prompts[p.Token] = msg
	targets := h.snapshot()
	h.mu.Unlock()

	if h.broadcast(targets, msg) == 0 {
		h.mu.Lock()
		delete(h.prompts, p.Token)
		h.mu.Unlock()
		return fmt.Errorf("%w: delivery to %d clients failed", ErrNoPresenter, len(targets))
	}
	return nil
}

// Clear withdraws the prompt for token from every client.
func (h *Hub) Clear(token string) {
	h.mu.Lock()
	_, ok := h.prompts[token]
	delete(h.prompts, token)
	targets := h.snapshot()
	h.mu.Unlock()

	if ok {
		h.broadcast(targets, clearMessage(token))
	}
}

// snapshot copies the client set. Callers hold h.mu.
func (h *Hub) snapshot() []*client {
	out := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// broadcast sends m to targets and returns how many succeeded.
func (h *Hub) broadcast(targets []*client, m serverMessage) int {
	delivered := 0
	for _, c := range targets {
		if err := c.send(m); err != nil {
			h.logger.Warn(map[string]any{
				"client": c.id,
				"type":   m.Type,
				"token":  m.Token,
				"error":  err.Error(),
			}, "Failed to send to prompt client")
			continue
		}
		delivered++
	}
	return delivered
}

// ServeHTTP upgrades the request and serves one prompt client until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error(map[string]any{"error": err.Error(), "remote": r.RemoteAddr}, "Failed to upgrade prompt client")
		return
	}
	c := &client{id: uuid.NewString(), conn: conn}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = c.close()
		return
	}
	h.clients[c.id] = c
	replay := make([]serverMessage, 0, len(h.prompts))
	for _, m := range h.prompts {
		replay = append(replay, m)
	}
	h.mu.Unlock()

	h.logger.Info(map[string]any{"client": c.id, "remote": r.RemoteAddr}, "Prompt client connected")

	for _, m := range replay {
		if err := c.send(m); err != nil {
			break
		}
	}

	done := make(chan struct{})
	go h.keepalive(c, done)
	h.readLoop(c)
	close(done)

	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	_ = c.conn.Close()
	h.logger.Info(map[string]any{"client": c.id}, "Prompt client disconnected")
}

func (h *Hub) keepalive(c *client, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn(map[string]any{"client": c.id, "error": err.Error()}, "Prompt client read failed")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var m clientMessage
		if err := json.Unmarshal(data, &m); err != nil {
			h.logger.Warn(map[string]any{"client": c.id, "error": err.Error()}, "Malformed prompt client message")
			continue
		}

		h.mu.RLock()
		sink := h.sink
		h.mu.RUnlock()
		if sink == nil {
			h.logger.Warn(map[string]any{"client": c.id, "token": m.Token}, "No sink bound, dropping answer")
			continue
		}
		if err := dispatch(sink, m); err != nil {
			h.logger.Warn(map[string]any{"client": c.id, "error": err.Error()}, "Rejected prompt client message")
		}
	}
}

// Close disconnects every client and refuses further prompts.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	targets := h.snapshot()
	h.clients = make(map[string]*client)
	h.prompts = make(map[string]serverMessage)
	h.mu.Unlock()

	for _, c := range targets {
		_ = c.close()
	}
}
