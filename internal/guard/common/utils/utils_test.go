package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalDomain(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Example.COM", "example.com"},
		{" example.com. ", "example.com"},
		{"example.com...", "example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalDomain(tt.in), "input %q", tt.in)
	}
}

func TestGetApexDomain(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"www.example.com", "example.com"},
		{"a.b.example.co.uk.", "example.co.uk"},
		{"example.com", "example.com"},
		{"localhost", "localhost"},
		{"com", "com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GetApexDomain(tt.in), "input %q", tt.in)
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://www.Example.com/path?q=1", "example.com"},
		{"http://example.com:8080/", "example.com"},
		{"https://sub.example.org", "sub.example.org"},
		{"example.com/some/path", "example.com"},
		{"www.example.net", "example.net"},
		{"EXAMPLE.COM", "example.com"},
		{"https://user:pw@www.example.com:443/x", "example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractDomain(tt.in), "input %q", tt.in)
	}
}

func TestExtractDomain_Unparseable(t *testing.T) {
	assert.Equal(t, "http://[::1", ExtractDomain("HTTP://[::1"))
}

func TestHostname(t *testing.T) {
	assert.Equal(t, "example.com", Hostname("https://example.com:8443/a"))
	assert.Equal(t, "not a url", Hostname("not a url"))
}
