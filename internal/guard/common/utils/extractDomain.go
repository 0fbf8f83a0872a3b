package utils

import (
	"net/url"
	"strings"
)

// ExtractDomain reduces a URL (or bare host) to the domain used for site
// list lookups. Scheme-less input such as "example.com/path" is accepted by
// taking the first path segment. A leading "www." and any port are dropped
// and the result is lowercased. Unparseable input is returned lowercased.
func ExtractDomain(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	parsed, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}

	host := parsed.Host
	if host == "" && parsed.Path != "" {
		host = strings.SplitN(parsed.Path, "/", 2)[0]
	}

	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return CanonicalDomain(host)
}

// Hostname returns the host part of rawURL without port, or rawURL itself
// when it cannot be parsed as an absolute URL.
func Hostname(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Hostname() == "" {
		return rawURL
	}
	return parsed.Hostname()
}
