package domain

import (
	"fmt"
	"strings"
	"time"
)

// RuleKind defines how a site rule matches domains.
//
// exact  - matches the name only
// suffix - matches the name and any subdomain of it
type RuleKind uint8

const (
	RuleExact RuleKind = iota
	RuleSuffix
)

func (k RuleKind) String() string {
	switch k {
	case RuleExact:
		return "exact"
	case RuleSuffix:
		return "suffix"
	default:
		return fmt.Sprintf("RuleKind(%d)", k)
	}
}

// ParseRuleKind converts "exact" or "suffix" (case-insensitive) into a RuleKind.
func ParseRuleKind(s string) (RuleKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exact":
		return RuleExact, nil
	case "suffix":
		return RuleSuffix, nil
	default:
		return 0, fmt.Errorf("unsupported RuleKind: %q", s)
	}
}

// SiteRule places a domain on the legitimate or suspicious list.
// Name is canonical: lowercase, no trailing dot, no "www." prefix.
type SiteRule struct {
	Name     string
	Kind     RuleKind
	Category Category
	Source   string
	AddedAt  time.Time
}

// NewSiteRule constructs and validates a SiteRule.
func NewSiteRule(name string, kind RuleKind, category Category, source string, addedAt time.Time) (SiteRule, error) {
	r := SiteRule{
		Name:     strings.TrimSpace(name),
		Kind:     kind,
		Category: category,
		Source:   strings.TrimSpace(source),
		AddedAt:  addedAt,
	}
	if err := r.Validate(); err != nil {
		return SiteRule{}, err
	}
	return r, nil
}

// Validate checks required fields. Only legitimate and suspicious are
// listable categories; unknown is the absence of a rule.
func (r SiteRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name must not be empty")
	}
	if r.Source == "" {
		return fmt.Errorf("rule source must not be empty")
	}
	if r.AddedAt.IsZero() {
		return fmt.Errorf("rule addedAt must be set")
	}
	switch r.Kind {
	case RuleExact, RuleSuffix:
	default:
		return fmt.Errorf("unsupported RuleKind: %d", r.Kind)
	}
	switch r.Category {
	case CategoryLegitimate, CategorySuspicious:
	default:
		return fmt.Errorf("unsupported rule category: %q", r.Category)
	}
	return nil
}

func (r SiteRule) IsSuffix() bool { return r.Kind == RuleSuffix }
