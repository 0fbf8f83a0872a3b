package browser

import (
	"context"

	"github.com/haukened/navguard/internal/guard/domain"
)

// Navigator applies the navigation policy to one paused navigation.
type Navigator interface {
	HandleNavigation(ctx context.Context, nav domain.Navigation) domain.NavigationResult
}

// Target is a page target advertised by the DevTools endpoint.
type Target struct {
	ID           string
	URL          string
	WebSocketURL string
}

// Paused is a document request held by the browser until it is continued
// or failed.
type Paused struct {
	RequestID string
	URL       string
	FrameID   string
}

// PausedStream yields paused requests for one tab. Next returns an error
// once the tab or its connection goes away.
type PausedStream interface {
	Next() (Paused, error)
	Close() error
}

// TabClient is the DevTools surface the watcher needs for one tab.
type TabClient interface {
	// TopFrame returns the ID of the tab's main frame.
	TopFrame(ctx context.Context) (string, error)
	// Intercept starts pausing document requests and returns the stream.
	Intercept(ctx context.Context) (PausedStream, error)
	Continue(ctx context.Context, requestID string) error
	Fail(ctx context.Context, requestID string) error
	Navigate(ctx context.Context, url string) error
	Close() error
}

// Lister returns the page targets currently open in the browser.
type Lister func(ctx context.Context) ([]Target, error)

// Dialer connects to one target's DevTools WebSocket.
type Dialer func(ctx context.Context, target Target) (TabClient, error)
