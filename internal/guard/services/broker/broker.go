// Package broker arbitrates interactive allow/deny prompts. Each prompt is
// tracked by a token and settled exactly once by whichever completion
// source gets there first: a user action, a user dismissal, the timeout,
// or the waiting caller going away.
package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haukened/navguard/internal/guard/common/clock"
	"github.com/haukened/navguard/internal/guard/common/log"
	"github.com/haukened/navguard/internal/guard/common/utils"
	"github.com/haukened/navguard/internal/guard/domain"
)

const DefaultTimeout = 20 * time.Second

var (
	// ErrPromptUnavailable is returned when the prompt could not be shown.
	// Callers must treat it as deny.
	ErrPromptUnavailable = errors.New("prompt unavailable")
	// ErrBrokerClosed is returned for requests made after Close.
	ErrBrokerClosed = errors.New("broker closed")
	// ErrDuplicateToken means the token source produced a token that is still pending.
	ErrDuplicateToken = errors.New("duplicate prompt token")
)

// TokenSource generates prompt tokens.
type TokenSource func(now time.Time) string

// NewToken returns "permission-<unix millis>-<uuid v4>".
func NewToken(now time.Time) string {
	return fmt.Sprintf("permission-%d-%s", now.UnixMilli(), uuid.NewString())
}

// pendingDecision is one outstanding prompt. settle has capacity 1 and is
// written only by the goroutine that removed the entry from the registry.
type pendingDecision struct {
	token     string
	url       string
	session   domain.Session
	settle    chan domain.Decision
	createdAt time.Time
	timer     clock.Timer
	// ctx carries request values for side effects but never cancels them.
	ctx context.Context
}

// Broker owns the registry of outstanding prompts.
type Broker struct {
	clock      clock.Clock
	logger     log.Logger
	presenter  Presenter
	redirector Redirector
	timeout    time.Duration
	newToken   TokenSource

	mu      sync.Mutex
	pending map[string]*pendingDecision
	closed  bool
}

// Options configures a Broker. Presenter is required; Redirector may be nil
// when the caller applies redirects itself.
type Options struct {
	Clock       clock.Clock
	Logger      log.Logger
	Presenter   Presenter
	Redirector  Redirector
	Timeout     time.Duration
	TokenSource TokenSource
}

// New creates a Broker, filling in defaults for optional options.
func New(opts Options) (*Broker, error) {
	if opts.Presenter == nil {
		return nil, fmt.Errorf("presenter is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.TokenSource == nil {
		opts.TokenSource = NewToken
	}
	return &Broker{
		clock:      opts.Clock,
		logger:     opts.Logger,
		presenter:  opts.Presenter,
		redirector: opts.Redirector,
		timeout:    opts.Timeout,
		newToken:   opts.TokenSource,
		pending:    make(map[string]*pendingDecision),
	}, nil
}

// RequestDecision shows a prompt for url and blocks until it is settled.
// It returns true only when the user explicitly allowed the navigation.
// When the outcome is deny and session is non-nil, the session has been
// redirected by the time RequestDecision returns.
//
// An error is returned when the prompt could not be shown, when the broker
// is closed, or when ctx ended before any other answer; in every error case
// the boolean is false.
func (b *Broker) RequestDecision(ctx context.Context, url string, session domain.Session) (bool, error) {
	d, err := b.Decide(ctx, url, session)
	return d.Allow, err
}

// Decide is RequestDecision returning the full settled Decision, including
// the deny reason.
func (b *Broker) Decide(ctx context.Context, url string, session domain.Session) (domain.Decision, error) {
	now := b.clock.Now()
	pd := &pendingDecision{
		token:     b.newToken(now),
		url:       url,
		session:   session,
		settle:    make(chan domain.Decision, 1),
		createdAt: now,
		ctx:       context.WithoutCancel(ctx),
	}

	if err := b.register(pd); err != nil {
		return domain.Denied(domain.ReasonPromptUnavailable), err
	}

	host := utils.Hostname(url)
	prompt := domain.Prompt{
		Token:     pd.token,
		URL:       url,
		Domain:    host,
		Title:     "Unknown Website",
		Message:   fmt.Sprintf("Do you want to visit %s?", host),
		Actions:   domain.DefaultPromptActions,
		CreatedAt: now,
		ExpiresAt: now.Add(b.timeout),
	}

	if err := b.presenter.Show(ctx, prompt); err != nil {
		b.logger.Warn(map[string]any{
			"token": pd.token,
			"url":   url,
			"error": err.Error(),
		}, "Failed to show prompt")
		if b.retract(pd.token) {
			return <-pd.settle, fmt.Errorf("%w: %w", ErrPromptUnavailable, err)
		}
		// A competing source settled the token while Show was failing.
	} else {
		b.logger.Debug(map[string]any{
			"token":      pd.token,
			"url":        url,
			"expires_at": prompt.ExpiresAt,
		}, "Prompt shown")
	}

	select {
	case d := <-pd.settle:
		return d, nil
	case <-ctx.Done():
		if b.resolve(pd.token, domain.Denied(domain.ReasonCanceled)) {
			return <-pd.settle, ctx.Err()
		}
		return <-pd.settle, nil
	}
}

// register inserts pd and arms its timeout.
func (b *Broker) register(pd *pendingDecision) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}
	if _, exists := b.pending[pd.token]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateToken, pd.token)
	}
	token := pd.token
	b.pending[token] = pd
	// The timer callback blocks on b.mu until pd.timer is assigned.
	pd.timer = b.clock.AfterFunc(b.timeout, func() {
		b.resolve(token, domain.Denied(domain.ReasonTimeout))
	})
	return nil
}

// HandleAction settles token from a prompt button. Index 0 allows, any
// other index denies. It reports whether the event settled the token.
func (b *Broker) HandleAction(token string, index int) bool {
	d := domain.Denied(domain.ReasonUserDenied)
	if index == domain.ActionAllow {
		d = domain.Allowed()
	}
	return b.resolve(token, d)
}

// HandleDismissal settles token as denied when the user closed the prompt.
// System-initiated closes (byUser false) leave the token pending.
func (b *Broker) HandleDismissal(token string, byUser bool) bool {
	if !byUser {
		b.logger.Debug(map[string]any{"token": token}, "Ignoring programmatic prompt close")
		return false
	}
	return b.resolve(token, domain.Denied(domain.ReasonNotificationClosed))
}

// resolve is the single settlement step. Lookup, removal and timer stop
// happen under b.mu, so only the first caller for a token gets past the
// lookup; later callers are no-ops. The decision is delivered to the waiting
// caller only after the prompt is cleared and any deny redirect has run.
func (b *Broker) resolve(token string, d domain.Decision) bool {
	b.mu.Lock()
	pd, ok := b.pending[token]
	if !ok {
		b.mu.Unlock()
		b.logger.Debug(map[string]any{"token": token, "reason": d.Reason.String()}, "Ignoring event for settled prompt")
		return false
	}
	delete(b.pending, token)
	if pd.timer != nil {
		pd.timer.Stop()
	}
	b.mu.Unlock()
	defer func() { pd.settle <- d }()

	b.presenter.Clear(token)

	b.logger.Info(map[string]any{
		"token":   token,
		"url":     pd.url,
		"allow":   d.Allow,
		"reason":  d.Reason.String(),
		"elapsed": b.clock.Now().Sub(pd.createdAt).String(),
	}, "Prompt settled")

	if !d.Allow && pd.session != nil && b.redirector != nil {
		if err := b.redirector.Redirect(pd.ctx, pd.session, pd.url, d.Reason); err != nil {
			b.logger.Error(map[string]any{
				"token":   token,
				"session": pd.session.ID(),
				"error":   err.Error(),
			}, "Failed to redirect denied session")
		}
	}
	return true
}

// retract removes token without side effects after a failed Show. It
// reports whether the token was still pending.
func (b *Broker) retract(token string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	pd, ok := b.pending[token]
	if !ok {
		return false
	}
	delete(b.pending, token)
	if pd.timer != nil {
		pd.timer.Stop()
	}
	pd.settle <- domain.Denied(domain.ReasonPromptUnavailable)
	return true
}

// Pending returns the number of unsettled prompts.
func (b *Broker) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// IsPending reports whether token is still awaiting settlement.
func (b *Broker) IsPending(token string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pending[token]
	return ok
}

// Close denies every outstanding prompt and rejects new requests.
func (b *Broker) Close() {
	b.mu.Lock()
	b.closed = true
	tokens := make([]string, 0, len(b.pending))
	for token := range b.pending {
		tokens = append(tokens, token)
	}
	b.mu.Unlock()

	for _, token := range tokens {
		b.resolve(token, domain.Denied(domain.ReasonCanceled))
	}
}
