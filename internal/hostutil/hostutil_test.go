package hostutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHost_EquivalentForms(t *testing.T) {
	// All spellings of the same host must normalize identically.
	forms := []string{
		"http://WWW.acme-plumbing.com/",
		"https://acme-plumbing.com",
		"https://acme-plumbing.com/path?q=1",
		"acme-plumbing.com",
		"www.acme-plumbing.com/contact#team",
		"https://ACME-PLUMBING.COM:443/about",
	}
	want := "acme-plumbing.com"
	for _, f := range forms {
		assert.Equal(t, want, NormalizeHost(f), f)
	}
}

func TestNormalizeHost_Invalid(t *testing.T) {
	assert.Equal(t, "", NormalizeHost(""))
	assert.Equal(t, "", NormalizeHost("   "))
	assert.Equal(t, "", NormalizeHost("://nope"))
}

func TestSameHost(t *testing.T) {
	assert.True(t, SameHost("http://www.h.com/", "https://h.com/x?y=1"))
	assert.False(t, SameHost("https://a.com", "https://b.com"))
	assert.False(t, SameHost("", ""))
}

func TestIsSocialHost(t *testing.T) {
	assert.True(t, IsSocialHost("https://www.facebook.com/acmeplumbing"))
	assert.True(t, IsSocialHost("https://m.facebook.com/acmeplumbing"))
	assert.True(t, IsSocialHost("https://linkedin.com/company/acme"))
	assert.False(t, IsSocialHost("https://acme.com"))
	assert.False(t, IsSocialHost("https://notfacebook.example.com"))
}

func TestDomainToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://acme-plumbing.com", "Acme Plumbing"},
		{"www.zenith.co.uk", "Zenith"},
		{"http://blue_sky.io/about", "Blue Sky"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DomainToken(tt.in), tt.in)
	}
}

func TestLooksDomainDerived(t *testing.T) {
	assert.True(t, LooksDomainDerived("acmeplumbing", "https://acmeplumbing.com"))
	assert.True(t, LooksDomainDerived("Acme Plumbing", "https://acme-plumbing.com"))
	assert.True(t, LooksDomainDerived("acmeplumbing.com", "https://acmeplumbing.com"))
	assert.False(t, LooksDomainDerived("Acme Plumbing & Heating Ltd", "https://acme.com"))
}
