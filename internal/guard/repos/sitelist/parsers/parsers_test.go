package parsers

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/haukened/navguard/internal/guard/common/log"
	"github.com/haukened/navguard/internal/guard/domain"
)

var now = time.Unix(1723550000, 0)

func names(rules []domain.SiteRule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Name + "|" + r.Kind.String()
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParsePlainList_Basics(t *testing.T) {
	input := "\uFEFF# comment at top\n" + `
Example.COM
example.com.#inline comment
www.example.com
	sub.Example.com.
*.wild.example.com
.root.example.org
https://www.Shop.example.net/login?x=1
localhost
not a domain
example.com   # duplicate
`
	got, err := ParsePlainList(bytes.NewBufferString(input), "test-source", domain.CategorySuspicious, log.NewNoopLogger(), now)
	if err != nil {
		t.Fatalf("ParsePlainList: %v", err)
	}
	want := []string{
		"example.com|exact",
		"sub.example.com|exact",
		"wild.example.com|suffix",
		"root.example.org|suffix",
		"shop.example.net|exact",
	}
	if !equal(names(got), want) {
		t.Fatalf("rules = %v; want %v", names(got), want)
	}
	for i, r := range got {
		if r.Source != "test-source" || !r.AddedAt.Equal(now) || r.Category != domain.CategorySuspicious {
			t.Fatalf("rule[%d] metadata: %+v", i, r)
		}
	}
}

func TestParsePlainList_EmptyAndCommentsOnly(t *testing.T) {
	got, err := ParsePlainList(bytes.NewBufferString("\n# only\n   \n"), "s", domain.CategoryLegitimate, log.NewNoopLogger(), now)
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestParsePlainList_RejectsUnknownCategory(t *testing.T) {
	got, err := ParsePlainList(bytes.NewBufferString("example.com\n"), "s", domain.CategoryUnknown, log.NewNoopLogger(), now)
	if err != nil || len(got) != 0 {
		t.Fatalf("unknown category must produce no rules, got %v, %v", got, err)
	}
}

func TestParseHostsFile(t *testing.T) {
	input := `
# hosts file
127.0.0.1 localhost
127.0.0.1 localhost.localdomain
255.255.255.255 broadcasthost
0.0.0.0 0.0.0.0
0.0.0.0 ads.example.com tracker.example.com # inline
0.0.0.0 *.wild.example.com .dot.example.com
::1 WWW.Evil.NET.
0.0.0.0
0.0.0.0 ads.example.com
`
	got, err := ParseHostsFile(bytes.NewBufferString(input), "hosts", domain.CategorySuspicious, log.NewNoopLogger(), now)
	if err != nil {
		t.Fatalf("ParseHostsFile: %v", err)
	}
	want := []string{
		"ads.example.com|exact",
		"tracker.example.com|exact",
		"evil.net|exact",
	}
	if !equal(names(got), want) {
		t.Fatalf("rules = %v; want %v", names(got), want)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestParse_ScanErrors(t *testing.T) {
	if _, err := ParsePlainList(failingReader{}, "s", domain.CategoryLegitimate, log.NewNoopLogger(), now); err == nil {
		t.Fatal("plain: expected error")
	}
	if _, err := ParseHostsFile(failingReader{}, "s", domain.CategoryLegitimate, log.NewNoopLogger(), now); err == nil {
		t.Fatal("hosts: expected error")
	}
}

func TestSplitSource(t *testing.T) {
	tests := []struct {
		in         string
		wantFormat Format
		wantPath   string
	}{
		{"/etc/navguard/good.txt", FormatPlain, "/etc/navguard/good.txt"},
		{"plain:/x.txt", FormatPlain, "/x.txt"},
		{"hosts:/etc/hosts", FormatHosts, "/etc/hosts"},
		{"  hosts:rel/path ", FormatHosts, "rel/path"},
	}
	for _, tt := range tests {
		f, p := SplitSource(tt.in)
		if f != tt.wantFormat || p != tt.wantPath {
			t.Errorf("SplitSource(%q) = %q, %q", tt.in, f, p)
		}
	}
}

func TestParse_UnknownFormat(t *testing.T) {
	if _, err := Parse("csv", bytes.NewBufferString(""), "s", domain.CategoryLegitimate, log.NewNoopLogger(), now); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hosts")
	if err := os.WriteFile(path, []byte("0.0.0.0 bad.example.com\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := ParseFile("hosts:"+path, domain.CategorySuspicious, log.NewNoopLogger(), now)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(got) != 1 || got[0].Name != "bad.example.com" || got[0].Source != path {
		t.Fatalf("got %+v", got)
	}

	if _, err := ParseFile(filepath.Join(dir, "missing"), domain.CategorySuspicious, log.NewNoopLogger(), now); err == nil {
		t.Fatal("expected open error")
	}
}

func TestIsValidFQDN(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"example.com", true},
		{"a.b.c", true},
		{"localhost", false},
		{"-bad.com", false},
		{"a..com", false},
		{string(bytes.Repeat([]byte("a"), 64)) + ".com", false},
	}
	for _, tt := range tests {
		if got := isValidFQDN(tt.in); got != tt.want {
			t.Errorf("isValidFQDN(%q) = %v", tt.in, got)
		}
	}
}

func TestIsLocalHostEntry(t *testing.T) {
	for name, want := range map[string]bool{
		"localhost.localdomain": true,
		"ip6-allnodes":          true,
		"0.0.0.0":               true,
		"fe80::1":               true,
		"10.0.0.1":              true,
		"ads.example.com":       false,
		"1.example.com":         false,
	} {
		if got := isLocalHostEntry(name); got != want {
			t.Errorf("isLocalHostEntry(%q) = %v; want %v", name, got, want)
		}
	}
}
