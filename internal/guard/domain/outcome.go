package domain

import "time"

// ClassificationOutcome is the result of classifying one URL.
// Error is only set when the lookup failed and Category fell back to unknown.
type ClassificationOutcome struct {
	URL       string
	Category  Category
	Timestamp time.Time
	Error     string
}

// NewOutcome builds an outcome, normalising any invalid category to unknown.
func NewOutcome(url string, category Category, at time.Time) ClassificationOutcome {
	if !category.IsValid() {
		category = CategoryUnknown
	}
	return ClassificationOutcome{URL: url, Category: category, Timestamp: at}
}

// UnknownOutcome is the fallback outcome for a failed lookup.
func UnknownOutcome(url string, at time.Time, cause error) ClassificationOutcome {
	o := ClassificationOutcome{URL: url, Category: CategoryUnknown, Timestamp: at}
	if cause != nil {
		o.Error = cause.Error()
	}
	return o
}

// Failed reports whether the outcome came from a failed lookup.
func (o ClassificationOutcome) Failed() bool { return o.Error != "" }
