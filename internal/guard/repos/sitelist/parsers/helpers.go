package parsers

import (
	"strings"
	"unicode"

	"github.com/haukened/navguard/internal/guard/common/utils"
	"github.com/haukened/navguard/internal/guard/domain"
)

// ruleKindFromRaw decides the RuleKind based on the raw, uncanonicalized input.
// Returns RuleSuffix if the name begins with "*." or ".", otherwise RuleExact.
func ruleKindFromRaw(raw string) domain.RuleKind {
	if strings.HasPrefix(raw, "*.") || strings.HasPrefix(raw, ".") {
		return domain.RuleSuffix
	}
	return domain.RuleExact
}

// isValidFQDN reports whether name looks like a listable host name:
// at most 255 bytes, at least two labels, each 1-63 bytes, first label
// starting with a letter or digit.
func isValidFQDN(name string) bool {
	if len(name) > 255 {
		return false
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if len(label) > 63 || len(label) == 0 {
			return false
		}
	}
	first := []rune(labels[0])
	return isAlphaNumeric(first[0])
}

// normalizeDomainName strips suffix markers and a leading "www." and
// returns the canonical name, so list entries line up with looked-up domains.
func normalizeDomainName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "*.")
	name = strings.TrimPrefix(name, ".")
	name = utils.CanonicalDomain(name)
	return strings.TrimPrefix(name, "www.")
}

func isAlphaNumeric(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func stripLineBOM(line string) string {
	return strings.TrimPrefix(line, "\uFEFF")
}

// classifyLine reports whether line is blank or a whole-line comment.
func classifyLine(line string) (isEmpty, isComment bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true, false
	}
	return false, strings.HasPrefix(trimmed, "#")
}

func stripInlineComment(line string) string {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		return line[:idx]
	}
	return line
}
