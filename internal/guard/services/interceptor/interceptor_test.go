package interceptor

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/navguard/internal/guard/common/clock"
	"github.com/haukened/navguard/internal/guard/common/log"
	"github.com/haukened/navguard/internal/guard/domain"
	"github.com/haukened/navguard/internal/guard/gateways/redirect"
	"github.com/haukened/navguard/internal/guard/services/broker"
)

var fixedNow = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

// --- fakes ---

type stubClassifier struct {
	mu       sync.Mutex
	category domain.Category
	panicMsg string
	calls    []string
}

func (c *stubClassifier) Classify(_ context.Context, u string) domain.ClassificationOutcome {
	c.mu.Lock()
	c.calls = append(c.calls, u)
	c.mu.Unlock()
	if c.panicMsg != "" {
		panic(c.panicMsg)
	}
	return domain.NewOutcome(u, c.category, fixedNow)
}

func (c *stubClassifier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type promptRecorder struct {
	shown   chan domain.Prompt
	showErr error
}

func (p *promptRecorder) Show(_ context.Context, pr domain.Prompt) error {
	if p.showErr != nil {
		return p.showErr
	}
	p.shown <- pr
	return nil
}

func (p *promptRecorder) Clear(string) {}

type tab struct {
	mu      sync.Mutex
	id      string
	visited []string
}

func (t *tab) ID() string { return t.id }

func (t *tab) Navigate(_ context.Context, target string) error {
	t.mu.Lock()
	t.visited = append(t.visited, target)
	t.mu.Unlock()
	return nil
}

func (t *tab) redirects() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.visited...)
}

type fixture struct {
	clock      *clock.MockClock
	classifier *stubClassifier
	prompts    *promptRecorder
	broker     *broker.Broker
	ic         *Interceptor
}

func newFixture(t *testing.T, category domain.Category) *fixture {
	t.Helper()
	f := &fixture{
		clock:      clock.NewMockClock(fixedNow),
		classifier: &stubClassifier{category: category},
		prompts:    &promptRecorder{shown: make(chan domain.Prompt, 8)},
	}
	rd, err := redirect.New("http://localhost:5000/blocked.html", log.NewNoopLogger())
	require.NoError(t, err)
	f.broker, err = broker.New(broker.Options{
		Clock:      f.clock,
		Logger:     log.NewNoopLogger(),
		Presenter:  f.prompts,
		Redirector: rd,
		Timeout:    20 * time.Second,
	})
	require.NoError(t, err)
	f.ic, err = New(Options{
		Classifier:   f.classifier,
		Decider:      f.broker,
		Redirector:   rd,
		SkipSchemes:  []string{"chrome://", "chrome-extension://", "about:"},
		SkipPatterns: []string{"google.com/search", "yandex.ru/search"},
		Clock:        f.clock,
		Logger:       log.NewNoopLogger(),
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) navigate(nav domain.Navigation) <-chan domain.NavigationResult {
	out := make(chan domain.NavigationResult, 1)
	go func() { out <- f.ic.HandleNavigation(context.Background(), nav) }()
	return out
}

func awaitPrompt(t *testing.T, f *fixture) domain.Prompt {
	t.Helper()
	select {
	case p := <-f.prompts.shown:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("no prompt shown")
		return domain.Prompt{}
	}
}

func awaitResult(t *testing.T, ch <-chan domain.NavigationResult) domain.NavigationResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("HandleNavigation did not return")
		return domain.NavigationResult{}
	}
}

func blockedReason(t *testing.T, target string) (string, string) {
	t.Helper()
	u, err := url.Parse(target)
	require.NoError(t, err)
	return u.Query().Get("url"), u.Query().Get("reason")
}

// --- tests ---

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestScenarioA_LegitimateAllows(t *testing.T) {
	f := newFixture(t, domain.CategoryLegitimate)
	s := &tab{id: "1"}

	res := f.ic.HandleNavigation(context.Background(), domain.Navigation{URL: "https://bank.example", Session: s})

	assert.Equal(t, domain.ActionAllowed, res.Action)
	assert.Equal(t, domain.CategoryLegitimate, res.Category)
	assert.Empty(t, s.redirects())
	assert.Len(t, f.prompts.shown, 0)
	assert.Equal(t, 0, f.broker.Pending())
}

func TestScenarioB_SuspiciousRedirectsWithoutPrompt(t *testing.T) {
	f := newFixture(t, domain.CategorySuspicious)
	s := &tab{id: "1"}

	res := f.ic.HandleNavigation(context.Background(), domain.Navigation{URL: "https://phish.example/login", Session: s})

	assert.Equal(t, domain.ActionBlocked, res.Action)
	assert.Equal(t, domain.ReasonSuspicious, res.Reason)
	require.Len(t, s.redirects(), 1)
	target, reason := blockedReason(t, s.redirects()[0])
	assert.Equal(t, "https://phish.example/login", target)
	assert.Empty(t, reason)
	assert.Len(t, f.prompts.shown, 0)
	assert.Equal(t, 0, f.broker.Pending())
}

func TestScenarioC_UnknownAllowedByFirstButton(t *testing.T) {
	f := newFixture(t, domain.CategoryUnknown)
	s := &tab{id: "1"}

	out := f.navigate(domain.Navigation{URL: "https://new.example", Session: s})
	p := awaitPrompt(t, f)
	assert.Equal(t, "new.example", p.Domain)
	require.True(t, f.broker.HandleAction(p.Token, 0))

	res := awaitResult(t, out)
	assert.Equal(t, domain.ActionAllowed, res.Action)
	assert.Equal(t, domain.CategoryUnknown, res.Category)
	assert.Empty(t, s.redirects())
}

func TestScenarioD_UnknownTimesOut(t *testing.T) {
	f := newFixture(t, domain.CategoryUnknown)
	s := &tab{id: "1"}

	out := f.navigate(domain.Navigation{URL: "https://new.example", Session: s})
	awaitPrompt(t, f)
	f.clock.Advance(20 * time.Second)

	res := awaitResult(t, out)
	assert.Equal(t, domain.ActionBlocked, res.Action)
	assert.Equal(t, domain.ReasonTimeout, res.Reason)
	require.Len(t, s.redirects(), 1)
	target, reason := blockedReason(t, s.redirects()[0])
	assert.Equal(t, "https://new.example", target)
	assert.Equal(t, "timeout", reason)
}

func TestUnknown_DeniedAndDismissed(t *testing.T) {
	tests := []struct {
		name   string
		settle func(b *broker.Broker, token string)
		reason domain.Reason
	}{
		{"block button", func(b *broker.Broker, tok string) { b.HandleAction(tok, 1) }, domain.ReasonUserDenied},
		{"user closed", func(b *broker.Broker, tok string) { b.HandleDismissal(tok, true) }, domain.ReasonNotificationClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, domain.CategoryUnknown)
			s := &tab{id: "1"}
			out := f.navigate(domain.Navigation{URL: "https://new.example", Session: s})
			tt.settle(f.broker, awaitPrompt(t, f).Token)

			res := awaitResult(t, out)
			assert.Equal(t, domain.ActionBlocked, res.Action)
			assert.Equal(t, tt.reason, res.Reason)
			require.Len(t, s.redirects(), 1, "exactly one redirect")
			_, reason := blockedReason(t, s.redirects()[0])
			assert.Equal(t, tt.reason.String(), reason)
		})
	}
}

func TestUnknown_PromptUnavailableBlocks(t *testing.T) {
	f := newFixture(t, domain.CategoryUnknown)
	f.prompts.showErr = errors.New("no clients")
	s := &tab{id: "1"}

	res := f.ic.HandleNavigation(context.Background(), domain.Navigation{URL: "https://new.example", Session: s})

	assert.Equal(t, domain.ActionBlocked, res.Action)
	assert.Equal(t, domain.ReasonPromptUnavailable, res.Reason)
	require.Len(t, s.redirects(), 1)
	_, reason := blockedReason(t, s.redirects()[0])
	assert.Equal(t, "prompt_unavailable", reason)
	assert.Equal(t, 0, f.broker.Pending())
}

func TestUnknown_CallerCanceled(t *testing.T) {
	f := newFixture(t, domain.CategoryUnknown)
	s := &tab{id: "1"}
	ctx, cancel := context.WithCancel(context.Background())

	out := make(chan domain.NavigationResult, 1)
	go func() { out <- f.ic.HandleNavigation(ctx, domain.Navigation{URL: "https://new.example", Session: s}) }()
	awaitPrompt(t, f)
	cancel()

	res := awaitResult(t, out)
	assert.Equal(t, domain.ActionBlocked, res.Action)
	assert.Equal(t, domain.ReasonCanceled, res.Reason)
	assert.Len(t, s.redirects(), 1, "broker redirects once; interceptor adds none")
}

func TestSkipRules(t *testing.T) {
	f := newFixture(t, domain.CategorySuspicious)
	tests := []struct {
		name string
		nav  domain.Navigation
	}{
		{"sub frame", domain.Navigation{URL: "https://evil.example", FrameID: 3}},
		{"chrome internal", domain.Navigation{URL: "chrome://settings"}},
		{"extension page", domain.Navigation{URL: "chrome-extension://abc/blocked.html"}},
		{"about page", domain.Navigation{URL: "about:blank"}},
		{"google search", domain.Navigation{URL: "https://www.google.com/search?q=x"}},
		{"yandex search", domain.Navigation{URL: "https://YANDEX.ru/search/?text=x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &tab{id: "1"}
			tt.nav.Session = s
			res := f.ic.HandleNavigation(context.Background(), tt.nav)
			assert.Equal(t, domain.ActionSkipped, res.Action)
			assert.Empty(t, s.redirects())
		})
	}
	assert.Equal(t, 0, f.classifier.callCount(), "skipped navigations are never classified")
}

func TestNilSessionSuspicious(t *testing.T) {
	f := newFixture(t, domain.CategorySuspicious)
	res := f.ic.HandleNavigation(context.Background(), domain.Navigation{URL: "https://evil.example"})
	assert.Equal(t, domain.ActionBlocked, res.Action)
}

func TestCheck_RecoversPanic(t *testing.T) {
	f := newFixture(t, domain.CategoryLegitimate)
	f.classifier.panicMsg = "boom"

	out := f.ic.Check(context.Background(), "https://x.example")
	assert.Equal(t, domain.CategoryUnknown, out.Category)
	assert.Contains(t, out.Error, "boom")
	assert.Equal(t, fixedNow, out.Timestamp)
}

func TestConcurrentNavigationsAreIndependent(t *testing.T) {
	f := newFixture(t, domain.CategoryUnknown)
	a, b := &tab{id: "a"}, &tab{id: "b"}

	outA := f.navigate(domain.Navigation{URL: "https://a.example", Session: a})
	pa := awaitPrompt(t, f)
	outB := f.navigate(domain.Navigation{URL: "https://b.example", Session: b})
	pb := awaitPrompt(t, f)

	tokens := map[string]string{pa.URL: pa.Token, pb.URL: pb.Token}
	require.True(t, f.broker.HandleAction(tokens["https://a.example"], 1))
	assert.Equal(t, domain.ActionBlocked, awaitResult(t, outA).Action)
	assert.True(t, f.broker.IsPending(tokens["https://b.example"]))

	require.True(t, f.broker.HandleAction(tokens["https://b.example"], 0))
	assert.Equal(t, domain.ActionAllowed, awaitResult(t, outB).Action)
	assert.Len(t, a.redirects(), 1)
	assert.Empty(t, b.redirects())
}
