// Package reputation answers "is this destination legitimate, suspicious
// or unknown" from the local site lists and maintains those lists.
package reputation

import (
	"errors"
	"fmt"

	"github.com/haukened/navguard/internal/guard/common/clock"
	"github.com/haukened/navguard/internal/guard/common/log"
	"github.com/haukened/navguard/internal/guard/common/utils"
	"github.com/haukened/navguard/internal/guard/domain"
	"github.com/haukened/navguard/internal/guard/repos/sitelist/parsers"
)

// ExampleLimit is how many names per list Stats reports.
const ExampleLimit = 5

// ErrInvalidDomain is returned when no domain can be extracted from input.
var ErrInvalidDomain = errors.New("no domain in url")

// Verdict is the answer for one URL.
type Verdict struct {
	Domain      string
	Category    domain.Category
	MatchedRule string
}

// AddResult reports the outcome of adding a site.
type AddResult struct {
	Success bool
	Message string
	Domain  string
}

// Stats summarises both lists.
type Stats struct {
	Legitimate         uint64
	Suspicious         uint64
	LegitimateExamples []string
	SuspiciousExamples []string
}

// Service implements lookups and list maintenance.
type Service struct {
	lists  SiteLists
	clock  clock.Clock
	logger log.Logger
	source string
}

// New creates a Service. source attributes rules added through it.
func New(lists SiteLists, clk clock.Clock, logger log.Logger, source string) *Service {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = log.GetLogger()
	}
	if source == "" {
		source = "api"
	}
	return &Service{lists: lists, clock: clk, logger: logger, source: source}
}

// Check classifies url. The legitimate list wins over the suspicious list;
// a domain on neither is unknown.
func (s *Service) Check(url string) (Verdict, error) {
	name := utils.ExtractDomain(url)
	if name == "" {
		return Verdict{}, fmt.Errorf("%w: %q", ErrInvalidDomain, url)
	}
	d, err := s.lists.Decide(name)
	if err != nil {
		return Verdict{Domain: name, Category: domain.CategoryUnknown}, fmt.Errorf("site list lookup: %w", err)
	}
	v := Verdict{Domain: name, Category: d.Category, MatchedRule: d.MatchedRule}
	s.logger.Debug(map[string]any{
		"url":      url,
		"domain":   name,
		"category": v.Category.String(),
		"rule":     v.MatchedRule,
	}, "Checked url")
	return v, nil
}

// AddLegitimate puts the domain of url on the legitimate list.
func (s *Service) AddLegitimate(url string) (AddResult, error) {
	return s.add(url, domain.CategoryLegitimate)
}

// AddSuspicious puts the domain of url on the suspicious list.
func (s *Service) AddSuspicious(url string) (AddResult, error) {
	return s.add(url, domain.CategorySuspicious)
}

func (s *Service) add(url string, category domain.Category) (AddResult, error) {
	name := utils.ExtractDomain(url)
	if name == "" {
		return AddResult{}, fmt.Errorf("%w: %q", ErrInvalidDomain, url)
	}
	rule, err := domain.NewSiteRule(name, domain.RuleExact, category, s.source, s.clock.Now())
	if err != nil {
		return AddResult{}, err
	}
	inserted, err := s.lists.Add(rule)
	if err != nil {
		return AddResult{}, fmt.Errorf("add %s site: %w", category, err)
	}
	res := AddResult{Success: inserted, Message: "Already exists", Domain: name}
	if inserted {
		res.Message = fmt.Sprintf("Added to %s sites", category)
	}
	return res, nil
}

// Stats returns list sizes and up to ExampleLimit names from each list.
func (s *Service) Stats() (Stats, error) {
	st := s.lists.Stats().Store
	legit, err := s.lists.Examples(domain.CategoryLegitimate, ExampleLimit)
	if err != nil {
		return Stats{}, err
	}
	susp, err := s.lists.Examples(domain.CategorySuspicious, ExampleLimit)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Legitimate:         st.Legitimate(),
		Suspicious:         st.Suspicious(),
		LegitimateExamples: legit,
		SuspiciousExamples: susp,
	}, nil
}

// Seed imports every configured list file into the site lists and returns
// the number of new rules. A list that cannot be read fails the seed.
func (s *Service) Seed(legitimate, suspicious []string) (int, error) {
	now := s.clock.Now()
	var rules []domain.SiteRule
	for _, group := range []struct {
		category domain.Category
		sources  []string
	}{
		{domain.CategoryLegitimate, legitimate},
		{domain.CategorySuspicious, suspicious},
	} {
		for _, source := range group.sources {
			parsed, err := parsers.ParseFile(source, group.category, s.logger, now)
			if err != nil {
				return 0, err
			}
			rules = append(rules, parsed...)
		}
	}
	if len(rules) == 0 {
		return 0, nil
	}
	n, err := s.lists.Import(rules)
	if err != nil {
		return n, fmt.Errorf("import site lists: %w", err)
	}
	s.logger.Info(map[string]any{"parsed": len(rules), "inserted": n}, "Site lists seeded")
	return n, nil
}
