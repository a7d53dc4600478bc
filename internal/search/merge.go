package search

import (
	"strings"

	"github.com/fathom-labs/leadstream/internal/classify"
	"github.com/fathom-labs/leadstream/internal/hostutil"
	"github.com/fathom-labs/leadstream/internal/model"
	"github.com/fathom-labs/leadstream/internal/search/provider"
)

// providerPrecedence fixes the combination order when merging batches:
// free-geographic first, last-resort scrape last. Unknown providers sort
// after the known ones, preserving their relative arrival order.
var providerPrecedence = map[string]int{
	"overpass":  0,
	"searx":     1,
	"nominatim": 2,
	"brave":     3,
	"serper":    4,
	"places":    5,
	"scrape":    6,
}

// mergeBatches combines provider batches in fixed precedence order,
// deduplicating by normalized hostname, or by business name plus locality
// for placeholder and unresolved links. Candidates whose link matches a
// known aggregator domain or listicle path are diverted into the returned
// directory list for expansion instead of the merged results.
func mergeBatches(batches []provider.Batch, location string) (merged []model.Candidate, directories []model.Candidate) {
	ordered := make([]provider.Batch, len(batches))
	copy(ordered, batches)
	// Insertion sort keeps arrival order for equal precedence.
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && precedence(ordered[j].Provider) < precedence(ordered[j-1].Provider); j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	seen := make(map[string]bool)
	for _, b := range ordered {
		for _, c := range b.Candidates {
			if c.Title == "" && c.Link == "" {
				continue
			}
			if classify.IsAggregatorURL(c.Link) {
				directories = append(directories, c)
				continue
			}
			key := identityKey(c, location)
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, c)
		}
	}
	return merged, directories
}

// identityKey builds the dedupe key for one candidate. Placeholder search
// links and missing websites fall back to name+locality since their links
// carry no business identity.
func identityKey(c model.Candidate, location string) string {
	if c.Link != "" && !c.IsPlaceholderLink() {
		if host := hostutil.NormalizeHost(c.Link); host != "" {
			return "host:" + host
		}
	}
	return "name:" + strings.ToLower(strings.TrimSpace(c.Title)) + "|" + strings.ToLower(location)
}

func precedence(name string) int {
	if p, ok := providerPrecedence[name]; ok {
		return p
	}
	return len(providerPrecedence)
}
