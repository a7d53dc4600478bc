package search

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed ontology.yaml
var ontologyYAML []byte

// Ontology maps business-category concepts to per-locale label sets used
// as additional search terms.
type Ontology struct {
	Concepts []Concept `yaml:"concepts"`
}

// Concept is one business category.
type Concept struct {
	ID    string   `yaml:"id"`
	Match []string `yaml:"match"`
	// Labels maps a language code to synonym search terms.
	Labels map[string][]string `yaml:"labels"`
}

// countryLanguages maps a lower-case ISO country code to the languages whose
// labels apply there, most specific first. English is always appended as a
// fallback.
var countryLanguages = map[string][]string{
	"ke": {"sw"},
	"tz": {"sw"},
	"fr": {"fr"},
	"be": {"fr"},
	"ch": {"de", "fr"},
	"de": {"de"},
	"at": {"de"},
	"es": {"es"},
	"mx": {"es"},
	"ar": {"es"},
	"co": {"es"},
}

// LoadOntology parses the embedded concept ontology.
func LoadOntology() (*Ontology, error) {
	var o Ontology
	if err := yaml.Unmarshal(ontologyYAML, &o); err != nil {
		return nil, eris.Wrap(err, "search: parse ontology")
	}
	return &o, nil
}

// Expand returns search terms for concepts whose trigger phrases occur in
// the query, drawing labels for the country's languages plus English. The
// original query is never included; callers prepend it. Results are capped
// at max and deduplicated case-insensitively against the query itself.
func (o *Ontology) Expand(query, country string, max int) []string {
	if max <= 0 {
		return nil
	}
	lowerQuery := strings.ToLower(query)

	langs := append([]string{}, countryLanguages[strings.ToLower(country)]...)
	langs = append(langs, "en")

	seen := map[string]bool{lowerQuery: true}
	var terms []string
	for _, c := range o.Concepts {
		if !c.matches(lowerQuery) {
			continue
		}
		for _, lang := range langs {
			for _, label := range c.Labels[lang] {
				key := strings.ToLower(label)
				if seen[key] {
					continue
				}
				seen[key] = true
				terms = append(terms, label)
				if len(terms) >= max {
					return terms
				}
			}
		}
	}
	return terms
}

func (c Concept) matches(lowerQuery string) bool {
	for _, m := range c.Match {
		if strings.Contains(lowerQuery, m) {
			return true
		}
	}
	return false
}
