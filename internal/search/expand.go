package search

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/fathom-labs/leadstream/internal/collab"
)

// maxVariants caps a query's expanded term list, original included.
const maxVariants = 8

// expandQuery builds the term list a search runs with: the original query
// first, then ontology labels for the country's locale, then LLM-proposed
// terms filling whatever room remains. The expander is optional and its
// failure only shrinks the list.
func expandQuery(ctx context.Context, ontology *Ontology, expander collab.TermExpander, query, country string) []string {
	terms := []string{query}
	seen := map[string]bool{strings.ToLower(query): true}

	if ontology != nil {
		for _, t := range ontology.Expand(query, country, maxVariants-len(terms)) {
			if seen[strings.ToLower(t)] {
				continue
			}
			seen[strings.ToLower(t)] = true
			terms = append(terms, t)
		}
	}

	if expander != nil && len(terms) < maxVariants {
		extra, err := expander.ExpandTerms(ctx, query, maxVariants-len(terms))
		if err != nil {
			zap.L().Debug("term expansion unavailable",
				zap.String("query", query), zap.Error(err))
			return terms
		}
		for _, t := range extra {
			if seen[strings.ToLower(t)] {
				continue
			}
			seen[strings.ToLower(t)] = true
			terms = append(terms, t)
			if len(terms) >= maxVariants {
				break
			}
		}
	}
	return terms
}

// simplifyQuery reduces a query to its first two significant words for the
// zero-result retry against the geographic provider.
func simplifyQuery(query string) string {
	var kept []string
	for _, w := range strings.Fields(query) {
		if isStopWord(w) {
			continue
		}
		kept = append(kept, w)
		if len(kept) == 2 {
			break
		}
	}
	return strings.Join(kept, " ")
}

var stopWords = map[string]bool{
	"in": true, "near": true, "the": true, "a": true, "an": true,
	"of": true, "for": true, "and": true, "best": true, "top": true,
}

func isStopWord(w string) bool {
	return stopWords[strings.ToLower(w)]
}
