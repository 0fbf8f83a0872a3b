package interceptor

import (
	"context"

	"github.com/haukened/navguard/internal/guard/domain"
)

// Classifier looks up the reputation of a URL. It never fails; problems
// come back as an unknown outcome.
type Classifier interface {
	Classify(ctx context.Context, url string) domain.ClassificationOutcome
}

// Decider obtains an interactive allow/deny answer for an unknown URL and
// redirects denied sessions itself.
type Decider interface {
	Decide(ctx context.Context, url string, session domain.Session) (domain.Decision, error)
}

// Redirector sends a session to the blocked page.
type Redirector interface {
	Redirect(ctx context.Context, session domain.Session, url string, reason domain.Reason) error
}
