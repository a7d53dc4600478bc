package extract

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/fathom-labs/leadstream/internal/hostutil"
	"github.com/fathom-labs/leadstream/internal/model"
)

const (
	// maxTeamPages bounds the team/about crawl per site.
	maxTeamPages = 12

	// targetDecisionMakers is the count below which the team crawl runs.
	targetDecisionMakers = 3
)

// teamPaths are likely locations of leadership/team pages, tried in order.
var teamPaths = []string{
	"/about", "/about-us", "/team", "/our-team", "/people",
	"/leadership", "/management", "/staff", "/who-we-are", "/company",
}

// teamPathHint marks sitemap URLs worth crawling for people.
var teamPathHint = regexp.MustCompile(`(?i)/(about|team|people|leadership|management|staff|founders?)(/|$|\.)`)

// leadershipTitlePattern recognizes decision-maker job titles near names.
var leadershipTitlePattern = regexp.MustCompile(`(?i)\b(CEO|CTO|CFO|COO|CMO|founder|co-founder|president|director|managing partner|partner|owner|principal|head of [a-z ]+|vice president|VP)\b`)

// namePattern matches "Firstname Lastname" shapes in headings.
var namePattern = regexp.MustCompile(`^[A-Z][a-zA-Z'.\-]+(?: [A-Z][a-zA-Z'.\-]+){1,3}$`)

// People extracts decision-makers from one page: JSON-LD Person entries
// first, then heading heuristics.
func People(doc *goquery.Document) []model.DecisionMaker {
	if doc == nil {
		return nil
	}
	var people []model.DecisionMaker
	seen := make(map[string]bool)

	for _, p := range jsonLDPeople(doc) {
		key := strings.ToLower(p.Name)
		if !seen[key] {
			seen[key] = true
			people = append(people, p)
		}
	}
	for _, p := range headingPeople(doc) {
		key := strings.ToLower(p.Name)
		if !seen[key] {
			seen[key] = true
			people = append(people, p)
		}
	}
	return people
}

// jsonLDPeople parses Person entries out of ld+json blocks, including
// Organization founder/employee nests.
func jsonLDPeople(doc *goquery.Document) []model.DecisionMaker {
	var people []model.DecisionMaker
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return
		}
		walkJSONLD(raw, func(node map[string]any) {
			if typeOf(node) != "Person" {
				return
			}
			name, _ := node["name"].(string)
			name = strings.TrimSpace(name)
			if name == "" || !namePattern.MatchString(name) {
				return
			}
			title, _ := node["jobTitle"].(string)
			people = append(people, model.DecisionMaker{
				Name:   name,
				Title:  strings.TrimSpace(title),
				Source: "jsonld",
			})
		})
	})
	return people
}

// organizationName returns the first JSON-LD Organization/LocalBusiness
// name on the page.
func organizationName(doc *goquery.Document) string {
	var name string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return true
		}
		walkJSONLD(raw, func(node map[string]any) {
			if name != "" {
				return
			}
			switch typeOf(node) {
			case "Organization", "LocalBusiness":
				if n, _ := node["name"].(string); n != "" {
					name = strings.TrimSpace(n)
				}
			}
		})
		return name == ""
	})
	return name
}

func walkJSONLD(node any, fn func(map[string]any)) {
	switch n := node.(type) {
	case map[string]any:
		fn(n)
		for _, v := range n {
			walkJSONLD(v, fn)
		}
	case []any:
		for _, item := range n {
			walkJSONLD(item, fn)
		}
	}
}

func typeOf(node map[string]any) string {
	switch t := node["@type"].(type) {
	case string:
		return t
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				return s
			}
		}
	}
	return ""
}

// headingPeople scans h2-h4 headings and figure captions for name-shaped
// text with a leadership title nearby.
func headingPeople(doc *goquery.Document) []model.DecisionMaker {
	var people []model.DecisionMaker
	doc.Find("h2, h3, h4, figcaption").Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.Text())
		if !namePattern.MatchString(name) {
			return
		}
		// The job title usually sits in the next sibling or the parent
		// block's remaining text.
		context := strings.TrimSpace(s.Next().Text())
		if context == "" {
			context = strings.TrimSpace(s.Parent().Text())
		}
		title := leadershipTitlePattern.FindString(context)
		if title == "" {
			return
		}
		people = append(people, model.DecisionMaker{
			Name:   name,
			Title:  title,
			Source: "heading",
		})
	})
	return people
}

// TeamPageURLs builds the bounded crawl list for a site: the standard
// team/about paths plus sitemap-derived URLs whose path hints at people,
// capped at maxTeamPages.
func TeamPageURLs(ctx context.Context, f *Fetcher, website string) []string {
	base, err := url.Parse(website)
	if err != nil || base.Host == "" {
		return nil
	}

	seen := make(map[string]bool)
	var urls []string
	add := func(u string) {
		if len(urls) >= maxTeamPages || seen[u] {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}

	for _, p := range teamPaths {
		add(base.Scheme + "://" + base.Host + p)
	}

	for _, u := range sitemapURLs(ctx, f, base) {
		if teamPathHint.MatchString(u) && hostutil.SameHost(u, website) {
			add(u)
		}
	}
	return urls
}

type sitemapIndex struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// sitemapURLs fetches /sitemap.xml and returns its locations. Failures are
// quietly ignored; the sitemap is an optional hint source.
func sitemapURLs(ctx context.Context, f *Fetcher, base *url.URL) []string {
	page, err := f.Fetch(ctx, base.Scheme+"://"+base.Host+"/sitemap.xml")
	if err != nil {
		zap.L().Debug("sitemap unavailable", zap.String("host", base.Host), zap.Error(err))
		return nil
	}

	var sm sitemapIndex
	if err := xml.Unmarshal([]byte(page.HTML), &sm); err != nil {
		return nil
	}
	out := make([]string, 0, len(sm.URLs))
	for _, u := range sm.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}
