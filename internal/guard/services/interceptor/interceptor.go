// Package interceptor applies the navigation policy: allow legitimate
// destinations, block suspicious ones, and ask the user about the rest.
package interceptor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/haukened/navguard/internal/guard/common/clock"
	"github.com/haukened/navguard/internal/guard/common/log"
	"github.com/haukened/navguard/internal/guard/domain"
)

// Options configures an Interceptor. Classifier, Decider and Redirector are
// required.
type Options struct {
	Classifier   Classifier
	Decider      Decider
	Redirector   Redirector
	SkipSchemes  []string
	SkipPatterns []string
	Clock        clock.Clock
	Logger       log.Logger
}

// Interceptor handles navigation-start events.
type Interceptor struct {
	classifier   Classifier
	decider      Decider
	redirector   Redirector
	skipSchemes  []string
	skipPatterns []string
	clock        clock.Clock
	logger       log.Logger
}

// New creates an Interceptor.
func New(opts Options) (*Interceptor, error) {
	if opts.Classifier == nil || opts.Decider == nil || opts.Redirector == nil {
		return nil, errors.New("classifier, decider and redirector are required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	lower := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return &Interceptor{
		classifier:   opts.Classifier,
		decider:      opts.Decider,
		redirector:   opts.Redirector,
		skipSchemes:  lower(opts.SkipSchemes),
		skipPatterns: lower(opts.SkipPatterns),
		clock:        opts.Clock,
		logger:       opts.Logger,
	}, nil
}

// ShouldSkip reports whether url is exempt from checking: browser-internal
// schemes and search result pages.
func (i *Interceptor) ShouldSkip(url string) bool {
	u := strings.ToLower(strings.TrimSpace(url))
	for _, scheme := range i.skipSchemes {
		if strings.HasPrefix(u, scheme) {
			return true
		}
	}
	for _, pattern := range i.skipPatterns {
		if strings.Contains(u, pattern) {
			return true
		}
	}
	return false
}

// Check classifies url for the decision-request boundary. A panic anywhere
// below is recovered into an unknown outcome.
func (i *Interceptor) Check(ctx context.Context, url string) (out domain.ClassificationOutcome) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error(map[string]any{"url": url, "panic": fmt.Sprint(r)}, "Classification panicked")
			out = domain.UnknownOutcome(url, i.clock.Now(), fmt.Errorf("classification failed: %v", r))
		}
	}()
	return i.classifier.Classify(ctx, url)
}

// HandleNavigation applies the policy to one navigation. For unknown
// destinations it blocks until the user answers or the prompt expires.
func (i *Interceptor) HandleNavigation(ctx context.Context, nav domain.Navigation) domain.NavigationResult {
	res := domain.NavigationResult{
		URL:       nav.URL,
		Category:  domain.CategoryUnknown,
		Action:    domain.ActionSkipped,
		Timestamp: i.clock.Now(),
	}
	if !nav.IsTopFrame() || i.ShouldSkip(nav.URL) {
		return res
	}

	outcome := i.Check(ctx, nav.URL)
	res.Category = outcome.Category

	switch outcome.Category {
	case domain.CategoryLegitimate:
		res.Action = domain.ActionAllowed

	case domain.CategorySuspicious:
		res.Action = domain.ActionBlocked
		res.Reason = domain.ReasonSuspicious
		i.redirect(ctx, nav, domain.ReasonSuspicious)

	default:
		res.Action, res.Reason = i.ask(ctx, nav)
	}

	i.logger.Info(map[string]any{
		"url":      nav.URL,
		"category": res.Category.String(),
		"action":   string(res.Action),
		"reason":   res.Reason.String(),
	}, "Navigation handled")
	return res
}

// ask consults the Decider. Any failure other than the caller going away
// blocks with prompt_unavailable and redirects here, since no prompt was
// settled to do it.
func (i *Interceptor) ask(ctx context.Context, nav domain.Navigation) (domain.NavigationAction, domain.Reason) {
	d, err := i.decider.Decide(ctx, nav.URL, nav.Session)
	switch {
	case err == nil && d.Allow:
		return domain.ActionAllowed, domain.ReasonNone
	case err == nil:
		return domain.ActionBlocked, d.Reason
	case ctx.Err() != nil:
		return domain.ActionBlocked, domain.ReasonCanceled
	default:
		i.logger.Warn(map[string]any{"url": nav.URL, "error": err.Error()}, "Permission prompt unavailable, blocking")
		i.redirect(ctx, nav, domain.ReasonPromptUnavailable)
		return domain.ActionBlocked, domain.ReasonPromptUnavailable
	}
}

func (i *Interceptor) redirect(ctx context.Context, nav domain.Navigation, reason domain.Reason) {
	if nav.Session == nil {
		return
	}
	if err := i.redirector.Redirect(ctx, nav.Session, nav.URL, reason); err != nil {
		i.logger.Error(map[string]any{
			"url":     nav.URL,
			"session": nav.Session.ID(),
			"error":   err.Error(),
		}, "Failed to redirect blocked navigation")
	}
}
