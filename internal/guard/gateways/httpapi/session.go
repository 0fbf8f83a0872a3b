package httpapi

import (
	"context"
	"sync"
)

// responseSession is the session handle for a navigation reported over
// HTTP. A redirect is recorded and returned in the response body instead
// of being applied.
type responseSession struct {
	id string

	mu     sync.Mutex
	target string
}

func (s *responseSession) ID() string { return s.id }

func (s *responseSession) Navigate(_ context.Context, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target == "" {
		s.target = target
	}
	return nil
}

func (s *responseSession) Redirect() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}
