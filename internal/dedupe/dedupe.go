// Package dedupe decides whether an extracted business duplicates a lead
// already persisted for the same search job. Duplicate suppression is scoped
// strictly to the current job: re-running a query returns a full fresh
// result set, and cross-job matches are never flagged.
package dedupe

import (
	"context"
	"regexp"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/rotisserie/eris"

	"github.com/fathom-labs/leadstream/internal/hostutil"
	"github.com/fathom-labs/leadstream/internal/model"
)

// NameSimilarityThreshold is the Levenshtein ratio above which two company
// names are treated as the same business.
const NameSimilarityThreshold = 0.85

// LeadSource lists the persisted leads the detector compares against.
type LeadSource interface {
	// ActiveLeads returns the non-duplicate leads of one search job.
	ActiveLeads(ctx context.Context, searchJobID string) ([]model.Lead, error)
}

// Subject is the record under test: the extracted identity of a candidate
// right before persistence.
type Subject struct {
	CompanyName string
	Website     string
	// PlaceholderLink marks provider-internal search links, which are never
	// hostname-compared.
	PlaceholderLink bool
}

// Result is the outcome of duplicate detection.
type Result struct {
	IsDuplicate       bool
	DuplicateOfLeadID string
	// Matched names the signal that fired: "website" or "company_name".
	Matched string
}

// Detector performs per-job duplicate detection.
type Detector struct {
	leads LeadSource
}

// NewDetector creates a Detector backed by the given lead source.
func NewDetector(leads LeadSource) *Detector {
	return &Detector{leads: leads}
}

// Detect checks the subject against the job's existing non-duplicate leads.
// Hostname identity is the strongest signal and wins when present; name
// similarity is the fallback. The lead list is read fresh from the store on
// every call, so a deleted duplicate target can never be referenced — a
// rescan of the surviving leads is what this lookup already is.
func (d *Detector) Detect(ctx context.Context, subject Subject, searchJobID string) (Result, error) {
	existing, err := d.leads.ActiveLeads(ctx, searchJobID)
	if err != nil {
		return Result{}, eris.Wrap(err, "dedupe: list active leads")
	}

	if !subject.PlaceholderLink {
		if host := hostutil.NormalizeHost(subject.Website); host != "" {
			for _, lead := range existing {
				if lead.WebsiteNorm == host {
					return Result{
						IsDuplicate:       true,
						DuplicateOfLeadID: lead.ID,
						Matched:           "website",
					}, nil
				}
			}
		}
	}

	name := normalizeName(subject.CompanyName)
	if name != "" {
		for _, lead := range existing {
			if NameSimilarity(name, normalizeName(lead.CompanyName)) > NameSimilarityThreshold {
				return Result{
					IsDuplicate:       true,
					DuplicateOfLeadID: lead.ID,
					Matched:           "company_name",
				}, nil
			}
		}
	}

	return Result{}, nil
}

// NameSimilarity computes (maxLen - editDistance) / maxLen for two
// normalized names. Returns 0 when either is empty.
func NameSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	maxLen := len([]rune(a))
	if lb := len([]rune(b)); lb > maxLen {
		maxLen = lb
	}
	dist := levenshtein.Distance(a, b, nil)
	if dist >= maxLen {
		return 0
	}
	return float64(maxLen-dist) / float64(maxLen)
}

// suffixPattern matches trailing business entity suffixes so that
// "Acme Corp" and "Acme Corporation" normalize to the same name.
var suffixPattern = regexp.MustCompile(`(?i),?\s*(inc\.?|llc\.?|ltd\.?|co\.?|corp\.?|corporation|company|gmbh|llp|lp|pllc|plc|pc)$`)

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for {
		stripped := suffixPattern.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = strings.TrimSpace(stripped)
	}
	return strings.Join(strings.Fields(s), " ")
}
