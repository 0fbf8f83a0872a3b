package domain

import (
	"context"
	"time"
)

// Session is an opaque handle to the browsing context a navigation belongs
// to. Navigate replaces what the session shows with target.
type Session interface {
	ID() string
	Navigate(ctx context.Context, target string) error
}

// Navigation is a navigation-start event observed by the interceptor.
// FrameID 0 is the top-level frame; Session may be nil.
type Navigation struct {
	URL     string
	FrameID int
	Session Session
}

// IsTopFrame reports whether the navigation targets the top-level frame.
func (n Navigation) IsTopFrame() bool { return n.FrameID == 0 }

// NavigationAction is what the interceptor did with a navigation.
type NavigationAction string

const (
	ActionAllowed NavigationAction = "allow"
	ActionBlocked NavigationAction = "block"
	ActionSkipped NavigationAction = "skip"
)

// NavigationResult summarises how a navigation was handled.
type NavigationResult struct {
	URL       string
	Category  Category
	Action    NavigationAction
	Reason    Reason
	Timestamp time.Time
}
