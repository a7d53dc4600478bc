package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fathom-labs/leadstream/internal/hostutil"
)

// placeholderNames are page titles and og:site_name values that carry no
// business identity.
var placeholderNames = map[string]bool{
	"home":              true,
	"homepage":          true,
	"welcome":           true,
	"index":             true,
	"untitled":          true,
	"coming soon":       true,
	"under construction": true,
	"default":           true,
	"new page":          true,
	"website":           true,
	"my site":           true,
	"my website":        true,
}

// idShapedPattern matches provider-internal identifiers masquerading as
// names, e.g. "ChIJN1t_tDeuEmsRUsoyG83frY4" or long hex blobs.
var idShapedPattern = regexp.MustCompile(`^(ChIJ[A-Za-z0-9_\-]{10,}|[0-9a-fA-F]{16,}|[A-Za-z0-9+/=_\-]{24,})$`)

var symbolsOnlyPattern = regexp.MustCompile(`^[\d\s\p{P}\p{S}]+$`)

// UsableName reports whether a candidate company name carries identity:
// not empty, not a placeholder, not purely numeric/symbolic, not an
// internal-ID shape.
func UsableName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	if placeholderNames[strings.ToLower(name)] {
		return false
	}
	if symbolsOnlyPattern.MatchString(name) {
		return false
	}
	if idShapedPattern.MatchString(name) {
		return false
	}
	return true
}

// PageName extracts the site's self-declared name: og:site_name first, then
// JSON-LD Organization/LocalBusiness name, then the title tag stripped of
// common separators.
func PageName(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}

	if v, ok := doc.Find(`meta[property="og:site_name"]`).Attr("content"); ok {
		if name := strings.TrimSpace(v); UsableName(name) {
			return name
		}
	}

	if name := organizationName(doc); UsableName(name) {
		return name
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	return cleanTitle(title)
}

// cleanTitle takes the business-name side of a "Name | Tagline" or
// "Name - Tagline" page title.
func cleanTitle(title string) string {
	for _, sep := range []string{" | ", " - ", " — ", " :: ", " · "} {
		if i := strings.Index(title, sep); i > 0 {
			title = title[:i]
			break
		}
	}
	return strings.TrimSpace(title)
}

// ResolveCompanyName applies the naming precedence: the page's extracted
// name wins; the search-result title replaces it when the page name is
// unusable or a bare restatement of the domain; the capitalized domain
// token is the last resort. Returns "" when nothing usable remains.
func ResolveCompanyName(pageName, resultTitle, website string) string {
	pageName = strings.TrimSpace(pageName)
	resultTitle = cleanTitle(strings.TrimSpace(resultTitle))

	if UsableName(pageName) && !hostutil.LooksDomainDerived(pageName, website) {
		return pageName
	}
	if UsableName(resultTitle) {
		return resultTitle
	}
	if UsableName(pageName) {
		// Domain-derived but real; better than a synthesized token.
		return pageName
	}
	if token := hostutil.DomainToken(website); UsableName(token) {
		return token
	}
	return ""
}
