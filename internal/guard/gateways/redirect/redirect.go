// Package redirect sends blocked sessions to the local blocked page.
package redirect

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/haukened/navguard/internal/guard/common/log"
	"github.com/haukened/navguard/internal/guard/domain"
)

var ErrNoSession = errors.New("no session to redirect")

// Redirector rewrites a session's location to the blocked page.
type Redirector struct {
	page   *url.URL
	logger log.Logger
}

// New parses blockedPage once; it must be an absolute URL.
func New(blockedPage string, logger log.Logger) (*Redirector, error) {
	u, err := url.Parse(blockedPage)
	if err != nil {
		return nil, fmt.Errorf("invalid blocked page %q: %w", blockedPage, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("blocked page %q must be absolute", blockedPage)
	}
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Redirector{page: u, logger: logger}, nil
}

// BlockedURL returns the blocked page address for target. The reason
// parameter is left out for plain suspicious blocks.
func (r *Redirector) BlockedURL(target string, reason domain.Reason) string {
	u := *r.page
	q := u.Query()
	q.Set("url", target)
	if reason != domain.ReasonNone && reason != domain.ReasonSuspicious {
		q.Set("reason", reason.String())
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Redirect navigates session to the blocked page for target.
func (r *Redirector) Redirect(ctx context.Context, session domain.Session, target string, reason domain.Reason) error {
	if session == nil {
		return ErrNoSession
	}
	dest := r.BlockedURL(target, reason)
	if err := session.Navigate(ctx, dest); err != nil {
		return fmt.Errorf("navigate session %s: %w", session.ID(), err)
	}
	r.logger.Info(map[string]any{
		"session": session.ID(),
		"url":     target,
		"reason":  reason.String(),
	}, "Redirected to blocked page")
	return nil
}
