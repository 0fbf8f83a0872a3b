package domain

import "time"

// Prompt action indexes. The first action allows; any other index denies.
const (
	ActionAllow = 0
	ActionBlock = 1
)

// DefaultPromptActions are the two labels offered on every prompt.
var DefaultPromptActions = [2]string{"Allow", "Block"}

// Prompt describes one interactive yes/no question shown to the user.
type Prompt struct {
	Token     string
	URL       string
	Domain    string
	Title     string
	Message   string
	Actions   [2]string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Remaining returns how long the prompt stays open measured from now.
func (p Prompt) Remaining(now time.Time) time.Duration {
	if d := p.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
