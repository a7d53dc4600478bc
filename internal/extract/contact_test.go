package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestEmailsMailtoFirstAndFiltered(t *testing.T) {
	html := `<html><body>
	<a href="mailto:sales@acme.example?subject=hi">Email us</a>
	<p>Reach info@acme.example or noreply@acme.example.</p>
	<p>Support: SALES@acme.example</p>
	<img src="logo@2x.png">
	<p>logo@2x.png errors@sentry.io test@example.com</p>
	</body></html>`

	emails := Emails(parseDoc(t, html), html)
	require.Len(t, emails, 2)
	assert.Equal(t, "sales@acme.example", emails[0])
	assert.Equal(t, "info@acme.example", emails[1])
}

func TestPhonesTelLinksFirst(t *testing.T) {
	html := `<html><body>
	<a href="tel:+254700123456">Call us</a>
	<p>Office: (020) 555-1234</p>
	<p>Fax: 0000000000</p>
	<p>Bogus: 1111111111</p>
	<p>Short: 12345</p>
	</body></html>`

	phones := Phones(parseDoc(t, html), html)
	require.Len(t, phones, 2)
	assert.Equal(t, "+254700123456", phones[0])
	assert.Equal(t, "(020) 555-1234", phones[1])
}

func TestPhonesDedupesAcrossForms(t *testing.T) {
	html := `<html><body>
	<a href="tel:+1-415-555-0132">Call</a>
	<p>+1 (415) 555-0132</p>
	</body></html>`

	phones := Phones(parseDoc(t, html), html)
	assert.Len(t, phones, 1)
}

func TestUsableName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Acme Plumbing", true},
		{"", false},
		{"   ", false},
		{"Home", false},
		{"Welcome", false},
		{"12345", false},
		{"-- / --", false},
		{"ChIJN1t_tDeuEmsRUsoyG83frY4", false},
		{"deadbeefdeadbeefdeadbeef", false},
		{"3M", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UsableName(tt.name), "name %q", tt.name)
	}
}

func TestResolveCompanyNamePrecedence(t *testing.T) {
	// Page name wins when usable and not domain-derived.
	assert.Equal(t, "Acme Plumbing",
		ResolveCompanyName("Acme Plumbing", "Acme Plumbing Ltd - Nairobi", "https://acmeplumbing.example"))

	// Domain-derived page name loses to the result title.
	assert.Equal(t, "Acme Plumbing Ltd",
		ResolveCompanyName("acmeplumbing", "Acme Plumbing Ltd | Best plumbers", "https://acmeplumbing.example"))

	// Placeholder page name loses to the result title.
	assert.Equal(t, "Acme Plumbing Ltd",
		ResolveCompanyName("Home", "Acme Plumbing Ltd", "https://acmeplumbing.example"))

	// Nothing usable anywhere: capitalized domain token.
	assert.Equal(t, "Acme Plumbing",
		ResolveCompanyName("", "", "https://acme-plumbing.example"))

	// No signal at all.
	assert.Equal(t, "", ResolveCompanyName("", "12345", ""))
}

func TestPageNamePrefersOGSiteName(t *testing.T) {
	html := `<html><head>
	<meta property="og:site_name" content="Acme Plumbing">
	<title>Home | Acme</title>
	</head><body></body></html>`
	assert.Equal(t, "Acme Plumbing", PageName(parseDoc(t, html)))
}

func TestPageNameFallsBackToJSONLDThenTitle(t *testing.T) {
	jsonld := `<html><head>
	<script type="application/ld+json">{"@type": "LocalBusiness", "name": "City Pipes"}</script>
	<title>Welcome</title></head><body></body></html>`
	assert.Equal(t, "City Pipes", PageName(parseDoc(t, jsonld)))

	titled := `<html><head><title>Sunrise Dental - Quality care in Mombasa</title></head><body></body></html>`
	assert.Equal(t, "Sunrise Dental", PageName(parseDoc(t, titled)))
}

func TestPeopleFromJSONLDAndHeadings(t *testing.T) {
	html := `<html><head>
	<script type="application/ld+json">
	{"@type": "Organization", "name": "Acme", "founder": {"@type": "Person", "name": "Jane Wanjiku", "jobTitle": "CEO"}}
	</script>
	</head><body>
	<section>
	<h3>Peter Otieno</h3><p>Managing Partner and head of operations</p>
	</section>
	<h3>Our Services</h3><p>Plumbing and heating</p>
	<h3>Jane Wanjiku</h3><p>CEO</p>
	</body></html>`

	people := People(parseDoc(t, html))
	require.Len(t, people, 2)
	assert.Equal(t, "Jane Wanjiku", people[0].Name)
	assert.Equal(t, "CEO", people[0].Title)
	assert.Equal(t, "jsonld", people[0].Source)
	assert.Equal(t, "Peter Otieno", people[1].Name)
	assert.Equal(t, "heading", people[1].Source)
}

func TestPageAddressFromJSONLD(t *testing.T) {
	html := `<html><head>
	<script type="application/ld+json">
	{"@type": "LocalBusiness", "address": {"@type": "PostalAddress", "streetAddress": "12 Kimathi St", "addressLocality": "Nairobi"}}
	</script></head><body></body></html>`
	assert.Equal(t, "12 Kimathi St, Nairobi", pageAddress(parseDoc(t, html)))
}
