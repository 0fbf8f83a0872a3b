package domain

// SiteDecision is the outcome of looking a domain up in the site lists.
type SiteDecision struct {
	Category    Category
	MatchedRule string // rule name that matched, empty when unlisted
	Source      string
	Kind        RuleKind
}

// Listed reports whether any rule matched.
func (d SiteDecision) Listed() bool { return d.MatchedRule != "" }

// UnlistedDecision returns the decision for a domain on neither list.
func UnlistedDecision() SiteDecision { return SiteDecision{Category: CategoryUnknown} }
