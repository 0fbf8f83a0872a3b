package parsers

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	logpkg "github.com/haukened/navguard/internal/guard/common/log"
	"github.com/haukened/navguard/internal/guard/domain"
)

// Format is a list file syntax.
type Format string

const (
	FormatPlain Format = "plain"
	FormatHosts Format = "hosts"
)

// SplitSource splits a configured list entry of the form
// "[plain:|hosts:]path" into its format and path. Entries without a
// prefix are plain lists.
func SplitSource(source string) (Format, string) {
	source = strings.TrimSpace(source)
	for _, f := range []Format{FormatPlain, FormatHosts} {
		if p, ok := strings.CutPrefix(source, string(f)+":"); ok {
			return f, p
		}
	}
	return FormatPlain, source
}

// Parse dispatches to the parser for format.
func Parse(format Format, r io.Reader, source string, category domain.Category, logger logpkg.Logger, now time.Time) ([]domain.SiteRule, error) {
	switch format {
	case FormatPlain:
		return ParsePlainList(r, source, category, logger, now)
	case FormatHosts:
		return ParseHostsFile(r, source, category, logger, now)
	default:
		return nil, fmt.Errorf("unsupported list format %q", format)
	}
}

// ParseFile opens a configured list entry and parses it. The path is used
// as the rule source.
func ParseFile(source string, category domain.Category, logger logpkg.Logger, now time.Time) ([]domain.SiteRule, error) {
	format, path := SplitSource(source)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open list %s: %w", path, err)
	}
	defer f.Close()
	rules, err := Parse(format, f, path, category, logger, now)
	if err != nil {
		return nil, fmt.Errorf("parse list %s: %w", path, err)
	}
	return rules, nil
}

// hostOf returns the host of an absolute URL, or raw when there is none.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
