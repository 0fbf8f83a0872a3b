package httpapi

import (
	"context"

	"github.com/haukened/navguard/internal/guard/domain"
	"github.com/haukened/navguard/internal/guard/services/reputation"
)

// Reputation serves the lookup and list maintenance endpoints.
type Reputation interface {
	Check(url string) (reputation.Verdict, error)
	AddLegitimate(url string) (reputation.AddResult, error)
	AddSuspicious(url string) (reputation.AddResult, error)
	Stats() (reputation.Stats, error)
}

// Navigator serves the decision-request and navigation endpoints.
type Navigator interface {
	Check(ctx context.Context, url string) domain.ClassificationOutcome
	HandleNavigation(ctx context.Context, nav domain.Navigation) domain.NavigationResult
}
