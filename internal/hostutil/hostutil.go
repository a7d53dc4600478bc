// Package hostutil canonicalizes website URLs and hostnames so that two
// references to the same business site compare equal regardless of scheme,
// www prefix, path, or casing.
package hostutil

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeHost reduces a raw URL or hostname to a bare, lower-cased,
// www-stripped hostname. Paths, query strings, ports, and fragments are
// discarded. Returns "" for unparseable or empty input.
func NormalizeHost(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimSuffix(host, ".")
	return host
}

// SameHost reports whether two URLs resolve to the same normalized hostname.
func SameHost(a, b string) bool {
	ha := NormalizeHost(a)
	return ha != "" && ha == NormalizeHost(b)
}

// socialHosts are platforms that are never a business's own website.
var socialHosts = map[string]bool{
	"facebook.com":  true,
	"instagram.com": true,
	"twitter.com":   true,
	"x.com":         true,
	"linkedin.com":  true,
	"youtube.com":   true,
	"tiktok.com":    true,
	"pinterest.com": true,
	"yelp.com":      true,
}

// IsSocialHost reports whether the URL points at a social-media platform
// rather than a first-party business site.
func IsSocialHost(raw string) bool {
	host := NormalizeHost(raw)
	if host == "" {
		return false
	}
	if socialHosts[host] {
		return true
	}
	// Subdomains, e.g. m.facebook.com, business.linkedin.com.
	for sh := range socialHosts {
		if strings.HasSuffix(host, "."+sh) {
			return true
		}
	}
	return false
}

var titleCaser = cases.Title(language.English)

// DomainToken derives a display name from a hostname: the registrable label
// with separators spaced and title-cased, e.g. "acme-plumbing.co.uk" →
// "Acme Plumbing". Returns "" when no usable label exists.
func DomainToken(raw string) string {
	host := NormalizeHost(raw)
	if host == "" {
		return ""
	}
	label := strings.SplitN(host, ".", 2)[0]
	label = strings.NewReplacer("-", " ", "_", " ").Replace(label)
	label = strings.TrimSpace(label)
	if label == "" {
		return ""
	}
	return titleCaser.String(label)
}

// LooksDomainDerived reports whether a company name appears to be a bare
// restatement of the site's hostname (e.g. "acmeplumbing" for
// acmeplumbing.com), which a search-result title should outrank.
func LooksDomainDerived(name, website string) bool {
	host := NormalizeHost(website)
	if host == "" || name == "" {
		return false
	}
	label := strings.SplitN(host, ".", 2)[0]
	squash := func(s string) string {
		s = strings.ToLower(s)
		return strings.NewReplacer(" ", "", "-", "", "_", "", ".", "").Replace(s)
	}
	n := squash(name)
	return n == squash(label) || n == squash(host)
}
