package reputation

import (
	"github.com/haukened/navguard/internal/guard/domain"
	"github.com/haukened/navguard/internal/guard/repos/sitelist"
)

// SiteLists is the site list storage the service reads and writes.
type SiteLists interface {
	Decide(name string) (domain.SiteDecision, error)
	Add(rule domain.SiteRule) (bool, error)
	Import(rules []domain.SiteRule) (int, error)
	Examples(category domain.Category, limit int) ([]string, error)
	Stats() sitelist.RepoStats
}
