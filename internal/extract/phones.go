package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// phonePattern matches international and local phone shapes in free text.
var phonePattern = regexp.MustCompile(`[+(]?\d[\d\s\-().]{6,18}\d`)

// Phones extracts phone numbers from a page. tel: links come first since
// they are explicit; free-text matches follow. Implausible sequences are
// rejected.
func Phones(doc *goquery.Document, text string) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(raw string) {
		normalized := normalizePhone(raw)
		if normalized == "" || seen[normalized] {
			return
		}
		seen[normalized] = true
		out = append(out, strings.TrimSpace(raw))
	}

	if doc != nil {
		doc.Find(`a[href^="tel:"]`).Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			add(strings.TrimPrefix(href, "tel:"))
		})
	}

	for _, m := range phonePattern.FindAllString(text, -1) {
		add(m)
	}
	return out
}

// normalizePhone reduces a raw match to digits (with leading +) and returns
// "" for implausible sequences: too short, too long, all-same-digit, or
// all-zero.
func normalizePhone(raw string) string {
	var b strings.Builder
	for i, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	s := b.String()

	digits := strings.TrimPrefix(s, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return ""
	}

	allSame := true
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return ""
	}
	return s
}
