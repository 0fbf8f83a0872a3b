package broker

import (
	"context"

	"github.com/haukened/navguard/internal/guard/domain"
)

// Presenter surfaces prompts to the user. Show must not block waiting for
// an answer; answers come back through HandleAction / HandleDismissal.
// Clear retracts a prompt after it has been settled and must tolerate
// tokens it no longer knows.
type Presenter interface {
	Show(ctx context.Context, prompt domain.Prompt) error
	Clear(token string)
}

// Redirector applies the redirect-to-blocked side effect for a denied session.
type Redirector interface {
	Redirect(ctx context.Context, session domain.Session, url string, reason domain.Reason) error
}
