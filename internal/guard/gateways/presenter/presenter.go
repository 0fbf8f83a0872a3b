// Package presenter puts permission prompts in front of a user and feeds
// their answers back to a Sink.
package presenter

import (
	"errors"
	"time"

	"github.com/haukened/navguard/internal/guard/domain"
)

// ErrNoPresenter is returned by Show when no prompt surface is available.
var ErrNoPresenter = errors.New("no prompt surface available")

// Sink receives user answers keyed by prompt token.
type Sink interface {
	HandleAction(token string, index int) bool
	HandleDismissal(token string, byUser bool) bool
}

const (
	msgPrompt    = "prompt"
	msgClear     = "clear"
	msgAction    = "action"
	msgDismissed = "dismissed"
)

// serverMessage is sent to prompt clients.
type serverMessage struct {
	Type      string   `json:"type"`
	Token     string   `json:"token"`
	URL       string   `json:"url,omitempty"`
	Domain    string   `json:"domain,omitempty"`
	Title     string   `json:"title,omitempty"`
	Message   string   `json:"message,omitempty"`
	Actions   []string `json:"actions,omitempty"`
	ExpiresAt int64    `json:"expires_at,omitempty"` // unix millis
}

// clientMessage is received from prompt clients.
type clientMessage struct {
	Type   string `json:"type"`
	Token  string `json:"token"`
	Index  *int   `json:"index,omitempty"`
	ByUser bool   `json:"by_user,omitempty"`
}

func promptMessage(p domain.Prompt) serverMessage {
	return serverMessage{
		Type:      msgPrompt,
		Token:     p.Token,
		URL:       p.URL,
		Domain:    p.Domain,
		Title:     p.Title,
		Message:   p.Message,
		Actions:   p.Actions[:],
		ExpiresAt: p.ExpiresAt.UnixMilli(),
	}
}

func clearMessage(token string) serverMessage {
	return serverMessage{Type: msgClear, Token: token}
}

// dispatch forwards a client answer to sink. Malformed messages and unknown
// types are reported as errors; stale tokens are not.
func dispatch(sink Sink, m clientMessage) error {
	if m.Token == "" {
		return errors.New("message has no token")
	}
	switch m.Type {
	case msgAction:
		if m.Index == nil {
			return errors.New("action message has no index")
		}
		sink.HandleAction(m.Token, *m.Index)
	case msgDismissed:
		sink.HandleDismissal(m.Token, m.ByUser)
	default:
		return errors.New("unsupported message type " + m.Type)
	}
	return nil
}

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)
