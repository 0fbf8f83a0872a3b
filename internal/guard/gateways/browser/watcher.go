// Package browser attaches to a Chrome DevTools endpoint, pauses every
// document request and lets the navigation policy decide whether it
// continues. Each tab doubles as the session that blocked navigations are
// redirected in.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/haukened/navguard/internal/guard/common/log"
	"github.com/haukened/navguard/internal/guard/domain"
)

const defaultPollInterval = 2 * time.Second

// Options configures a Watcher.
type Options struct {
	Navigator Navigator
	List      Lister
	Dial      Dialer
	// Exempt lists URL prefixes that are continued without a check, such
	// as the blocked page itself.
	Exempt       []string
	PollInterval time.Duration
	Logger       log.Logger
}

// Watcher tracks the open tabs of one browser.
type Watcher struct {
	navigator Navigator
	list      Lister
	dial      Dialer
	exempt    []string
	poll      time.Duration
	logger    log.Logger

	mu   sync.Mutex
	tabs map[string]*Tab
	wg   sync.WaitGroup
}

// New creates a Watcher. Navigator, List and Dial are required.
func New(opts Options) (*Watcher, error) {
	if opts.Navigator == nil || opts.List == nil || opts.Dial == nil {
		return nil, errors.New("navigator, lister and dialer are required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	exempt := make([]string, 0, len(opts.Exempt))
	for _, p := range opts.Exempt {
		if p = strings.TrimSpace(p); p != "" {
			exempt = append(exempt, p)
		}
	}
	return &Watcher{
		navigator: opts.Navigator,
		list:      opts.List,
		dial:      opts.Dial,
		exempt:    exempt,
		poll:      opts.PollInterval,
		logger:    opts.Logger,
		tabs:      make(map[string]*Tab),
	}, nil
}

// Run attaches to every open tab and keeps attaching to new ones until ctx
// is cancelled. It fails only if the browser cannot be reached at start.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.sync(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.detachAll()
			w.wg.Wait()
			return nil
		case <-ticker.C:
			if err := w.sync(ctx); err != nil {
				w.logger.Warn(map[string]any{"error": err.Error()}, "Failed to refresh browser tabs")
			}
		}
	}
}

// Tabs returns the number of attached tabs.
func (w *Watcher) Tabs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.tabs)
}

func (w *Watcher) sync(ctx context.Context) error {
	targets, err := w.list(ctx)
	if err != nil {
		return err
	}
	for _, t := range targets {
		w.mu.Lock()
		_, known := w.tabs[t.ID]
		w.mu.Unlock()
		if known {
			continue
		}
		if err := w.attach(ctx, t); err != nil {
			w.logger.Warn(map[string]any{"tab": t.ID, "error": err.Error()}, "Failed to attach to tab")
		}
	}
	return nil
}

func (w *Watcher) attach(ctx context.Context, t Target) error {
	client, err := w.dial(ctx, t)
	if err != nil {
		return err
	}
	top, err := client.TopFrame(ctx)
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("frame tree: %w", err)
	}
	stream, err := client.Intercept(ctx)
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("enable interception: %w", err)
	}

	tab := &Tab{id: t.ID, top: top, client: client}
	w.mu.Lock()
	w.tabs[t.ID] = tab
	w.mu.Unlock()

	w.logger.Info(map[string]any{"tab": t.ID, "url": t.URL}, "Attached to tab")

	w.wg.Add(1)
	go w.serve(ctx, tab, stream)
	return nil
}

// serve dispatches each paused request on its own goroutine so a request
// waiting on a prompt never holds up the tab's other navigations, including
// the redirect to the blocked page.
func (w *Watcher) serve(ctx context.Context, tab *Tab, stream PausedStream) {
	defer w.wg.Done()
	defer w.detach(tab)
	defer func() { _ = stream.Close() }()

	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		ev, err := stream.Next()
		if err != nil {
			w.logger.Debug(map[string]any{"tab": tab.id, "error": err.Error()}, "Tab stream closed")
			return
		}
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			w.handle(ctx, tab, ev)
		}()
	}
}

func (w *Watcher) handle(ctx context.Context, tab *Tab, ev Paused) {
	// Answer the browser even when shutting down.
	reply := context.WithoutCancel(ctx)

	if w.isExempt(ev.URL) {
		w.resume(reply, tab, ev)
		return
	}

	frame := 0
	if ev.FrameID != tab.top {
		frame = 1
	}
	res := w.navigator.HandleNavigation(ctx, domain.Navigation{URL: ev.URL, FrameID: frame, Session: tab})

	if res.Action == domain.ActionBlocked {
		// A redirect may already have replaced this navigation, in which
		// case the browser has dropped the request.
		if err := tab.client.Fail(reply, ev.RequestID); err != nil {
			w.logger.Debug(map[string]any{"tab": tab.id, "url": ev.URL, "error": err.Error()}, "Fail request")
		}
		return
	}
	w.resume(reply, tab, ev)
}

func (w *Watcher) resume(ctx context.Context, tab *Tab, ev Paused) {
	if err := tab.client.Continue(ctx, ev.RequestID); err != nil {
		w.logger.Warn(map[string]any{"tab": tab.id, "url": ev.URL, "error": err.Error()}, "Failed to continue request")
	}
}

func (w *Watcher) isExempt(url string) bool {
	for _, p := range w.exempt {
		if strings.HasPrefix(url, p) {
			return true
		}
	}
	return false
}

func (w *Watcher) detach(tab *Tab) {
	w.mu.Lock()
	if w.tabs[tab.id] == tab {
		delete(w.tabs, tab.id)
	}
	w.mu.Unlock()
	_ = tab.client.Close()
	w.logger.Info(map[string]any{"tab": tab.id}, "Detached from tab")
}

func (w *Watcher) detachAll() {
	w.mu.Lock()
	tabs := make([]*Tab, 0, len(w.tabs))
	for _, t := range w.tabs {
		tabs = append(tabs, t)
	}
	w.mu.Unlock()
	for _, t := range tabs {
		_ = t.client.Close()
	}
}

// Tab is an attached browser tab. It implements domain.Session.
type Tab struct {
	id     string
	top    string
	client TabClient
}

func (t *Tab) ID() string { return t.id }

// Navigate loads target in the tab's main frame.
func (t *Tab) Navigate(ctx context.Context, target string) error {
	return t.client.Navigate(ctx, target)
}

var _ domain.Session = (*Tab)(nil)
