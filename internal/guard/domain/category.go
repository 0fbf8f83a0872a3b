package domain

import "strings"

// Category is the reputation class of a destination.
type Category string

const (
	CategoryLegitimate Category = "legitimate"
	CategorySuspicious Category = "suspicious"
	CategoryUnknown    Category = "unknown"
)

// ParseCategory maps s onto a Category. Anything unrecognised, including the
// empty string, is CategoryUnknown.
func ParseCategory(s string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryLegitimate:
		return CategoryLegitimate
	case CategorySuspicious:
		return CategorySuspicious
	default:
		return CategoryUnknown
	}
}

// IsValid reports whether c is one of the three defined categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryLegitimate, CategorySuspicious, CategoryUnknown:
		return true
	default:
		return false
	}
}

func (c Category) String() string { return string(c) }
