package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// nonBusinessLocalParts are mailbox names that never belong to a reachable
// human or sales inbox.
var nonBusinessLocalParts = map[string]bool{
	"noreply":      true,
	"no-reply":     true,
	"donotreply":   true,
	"do-not-reply": true,
	"mailer-daemon": true,
	"postmaster":   true,
	"abuse":        true,
	"spam":         true,
}

// nonBusinessDomains host infrastructure or example addresses, not inboxes.
var nonBusinessDomains = []string{
	"example.com",
	"example.org",
	"sentry.io",
	"wixpress.com",
	"sentry.wixpress.com",
	"godaddy.com",
	"cloudflare.com",
	"yourdomain.com",
	"domain.com",
	"email.com",
}

// assetExtensions catch image filenames the regex mistakes for addresses,
// e.g. "logo@2x.png".
var assetExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp"}

// Emails extracts business email addresses from a page: mailto links first,
// then free-text matches, filtered of infrastructure and asset noise.
// Order is preserved, mailto finds first; duplicates collapse
// case-insensitively.
func Emails(doc *goquery.Document, html string) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(addr string) {
		addr = strings.TrimSpace(strings.Trim(addr, ".,;:<>()[]"))
		key := strings.ToLower(addr)
		if addr == "" || seen[key] || !usableEmail(key) {
			return
		}
		seen[key] = true
		out = append(out, addr)
	}

	if doc != nil {
		doc.Find(`a[href^="mailto:"]`).Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			addr := strings.TrimPrefix(href, "mailto:")
			if i := strings.IndexAny(addr, "?&"); i >= 0 {
				addr = addr[:i]
			}
			add(addr)
		})
	}

	for _, m := range emailPattern.FindAllString(html, -1) {
		add(m)
	}
	return out
}

func usableEmail(addr string) bool {
	at := strings.LastIndex(addr, "@")
	if at <= 0 || at == len(addr)-1 {
		return false
	}
	local, domain := addr[:at], addr[at+1:]

	if nonBusinessLocalParts[local] {
		return false
	}
	for _, d := range nonBusinessDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return false
		}
	}
	for _, ext := range assetExtensions {
		if strings.HasSuffix(domain, ext) {
			return false
		}
	}
	return strings.Contains(domain, ".")
}
