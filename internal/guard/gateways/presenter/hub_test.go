package presenter

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/navguard/internal/guard/common/log"
	"github.com/haukened/navguard/internal/guard/domain"
)

type sinkEvent struct {
	kind   string
	token  string
	index  int
	byUser bool
}

type chanSink struct {
	events chan sinkEvent
}

func newChanSink() *chanSink { return &chanSink{events: make(chan sinkEvent, 16)} }

func (s *chanSink) HandleAction(token string, index int) bool {
	s.events <- sinkEvent{kind: msgAction, token: token, index: index}
	return true
}

func (s *chanSink) HandleDismissal(token string, byUser bool) bool {
	s.events <- sinkEvent{kind: msgDismissed, token: token, byUser: byUser}
	return true
}

func (s *chanSink) next(t *testing.T) sinkEvent {
	t.Helper()
	select {
	case e := <-s.events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no sink event")
		return sinkEvent{}
	}
}

func testPrompt(token string) domain.Prompt {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	return domain.Prompt{
		Token:     token,
		URL:       "https://unknown.example",
		Domain:    "unknown.example",
		Title:     "Unknown Website",
		Message:   "Do you want to visit unknown.example?",
		Actions:   domain.DefaultPromptActions,
		CreatedAt: now,
		ExpiresAt: now.Add(20 * time.Second),
	}
}

func startHub(t *testing.T) (*Hub, *chanSink, string) {
	t.Helper()
	hub := NewHub(log.NewNoopLogger(), nil)
	sink := newChanSink()
	hub.Bind(sink)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, sink, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, hub *Hub, url string, wantClients int) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return hub.Clients() == wantClients }, 2*time.Second, 5*time.Millisecond)
	return conn
}

func readServerMessage(t *testing.T, conn *websocket.Conn) serverMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m serverMessage
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestHub_ShowWithoutClients(t *testing.T) {
	hub := NewHub(log.NewNoopLogger(), nil)
	err := hub.Show(context.Background(), testPrompt("t1"))
	assert.ErrorIs(t, err, ErrNoPresenter)
}

func TestHub_ShowCanceledContext(t *testing.T) {
	hub := NewHub(log.NewNoopLogger(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, hub.Show(ctx, testPrompt("t1")), context.Canceled)
}

func TestHub_PromptAndAction(t *testing.T) {
	hub, sink, url := startHub(t)
	conn := dial(t, hub, url, 1)

	require.NoError(t, hub.Show(context.Background(), testPrompt("t1")))

	m := readServerMessage(t, conn)
	assert.Equal(t, msgPrompt, m.Type)
	assert.Equal(t, "t1", m.Token)
	assert.Equal(t, "unknown.example", m.Domain)
	assert.Equal(t, []string{"Allow", "Block"}, m.Actions)
	assert.Equal(t, testPrompt("t1").ExpiresAt.UnixMilli(), m.ExpiresAt)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "action", "token": "t1", "index": 0}))
	e := sink.next(t)
	assert.Equal(t, sinkEvent{kind: msgAction, token: "t1", index: 0}, e)

	hub.Clear("t1")
	m = readServerMessage(t, conn)
	assert.Equal(t, serverMessage{Type: msgClear, Token: "t1"}, m)
}

func TestHub_Dismissal(t *testing.T) {
	hub, sink, url := startHub(t)
	conn := dial(t, hub, url, 1)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "dismissed", "token": "t2", "by_user": true}))
	assert.Equal(t, sinkEvent{kind: msgDismissed, token: "t2", byUser: true}, sink.next(t))

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "dismissed", "token": "t2"}))
	assert.Equal(t, sinkEvent{kind: msgDismissed, token: "t2", byUser: false}, sink.next(t))
}

func TestHub_IgnoresMalformedMessages(t *testing.T) {
	hub, sink, url := startHub(t)
	conn := dial(t, hub, url, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "action", "token": "t3"}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "bogus", "token": "t3"}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "action", "index": 1}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "action", "token": "t3", "index": 1}))

	// only the well-formed message reaches the sink, and the connection survives
	assert.Equal(t, sinkEvent{kind: msgAction, token: "t3", index: 1}, sink.next(t))
	assert.Equal(t, 1, hub.Clients())
}

func TestHub_ReplaysOutstandingPrompts(t *testing.T) {
	hub, _, url := startHub(t)
	first := dial(t, hub, url, 1)

	require.NoError(t, hub.Show(context.Background(), testPrompt("t4")))
	require.NoError(t, hub.Show(context.Background(), testPrompt("t5")))
	readServerMessage(t, first)
	readServerMessage(t, first)
	hub.Clear("t4")
	readServerMessage(t, first)

	late := dial(t, hub, url, 2)
	m := readServerMessage(t, late)
	assert.Equal(t, msgPrompt, m.Type)
	assert.Equal(t, "t5", m.Token)
}

func TestHub_BroadcastsToAllClients(t *testing.T) {
	hub, _, url := startHub(t)
	a := dial(t, hub, url, 1)
	b := dial(t, hub, url, 2)

	require.NoError(t, hub.Show(context.Background(), testPrompt("t6")))

	var wg sync.WaitGroup
	for _, c := range []*websocket.Conn{a, b} {
		wg.Add(1)
		go func(c *websocket.Conn) {
			defer wg.Done()
			var m serverMessage
			_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
			if assert.NoError(t, c.ReadJSON(&m)) {
				assert.Equal(t, "t6", m.Token)
			}
		}(c)
	}
	wg.Wait()
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub, _, url := startHub(t)
	conn := dial(t, hub, url, 1)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, hub.Show(context.Background(), testPrompt("t7")), ErrNoPresenter)
}

func TestHub_ClearUnknownTokenIsNoOp(t *testing.T) {
	hub := NewHub(log.NewNoopLogger(), nil)
	assert.NotPanics(t, func() { hub.Clear("never-shown") })
}

func TestHub_CloseRefusesPrompts(t *testing.T) {
	hub, _, url := startHub(t)
	dial(t, hub, url, 1)
	hub.Close()
	assert.Equal(t, 0, hub.Clients())
	assert.ErrorIs(t, hub.Show(context.Background(), testPrompt("t8")), ErrNoPresenter)
}
