package collab

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/fathom-labs/leadstream/internal/model"
	"github.com/fathom-labs/leadstream/pkg/anthropic"
)

const enrichCallTimeout = 20 * time.Second

// enrichPrompt is the system prompt for lead enrichment.
const enrichPrompt = `You enrich a business lead discovered by a search pipeline. From the company name, website and any contacts provided, infer the company's industry, approximate size band (e.g. "1-10", "11-50", "51-200"), and the likely email pattern (e.g. "first.last"). Score signal_strength (how strong the buying signal is), quality_score (how complete and credible the lead looks) and verification_score (how confident you are the contacts are real), each between 0.0 and 1.0. List decision makers only when names with roles are present in the input.

Respond with ONLY valid JSON, no other text:
{"industry": "", "company_size": "", "email_pattern": "", "signal_strength": 0.0, "quality_score": 0.0, "verification_score": 0.0, "decision_makers": [{"name": "", "role": ""}]}`

// LLMEnricher enriches leads with a single Claude completion per lead.
// Callers wrap it in FailOpenEnricher.
type LLMEnricher struct {
	ai    anthropic.Client
	model string
}

// NewLLMEnricher creates an enricher using the given model.
func NewLLMEnricher(ai anthropic.Client, model string) *LLMEnricher {
	return &LLMEnricher{ai: ai, model: model}
}

type enrichResponse struct {
	Industry          string   `json:"industry"`
	CompanySize       string   `json:"company_size"`
	EmailPattern      string   `json:"email_pattern"`
	SignalStrength    *float64 `json:"signal_strength"`
	QualityScore      *float64 `json:"quality_score"`
	VerificationScore *float64 `json:"verification_score"`
	DecisionMakers    []struct {
		Name string `json:"name"`
		Role string `json:"role"`
	} `json:"decision_makers"`
}

// Enrich builds the enrichment prompt from the lead's extracted fields and
// parses the model's JSON verdict.
func (e *LLMEnricher) Enrich(ctx context.Context, lead model.Lead) (*Enrichment, error) {
	ctx, cancel := context.WithTimeout(ctx, enrichCallTimeout)
	defer cancel()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Company: %s\n", lead.CompanyName)
	if lead.Website != "" {
		fmt.Fprintf(&sb, "Website: %s\n", lead.Website)
	}
	if len(lead.Emails) > 0 {
		fmt.Fprintf(&sb, "Emails: %s\n", strings.Join(lead.Emails, ", "))
	}
	if len(lead.PhoneNumbers) > 0 {
		fmt.Fprintf(&sb, "Phones: %s\n", strings.Join(lead.PhoneNumbers, ", "))
	}
	if lead.Address != "" {
		fmt.Fprintf(&sb, "Address: %s\n", lead.Address)
	}
	for _, dm := range lead.DecisionMakers {
		fmt.Fprintf(&sb, "Contact: %s (%s)\n", dm.Name, dm.Title)
	}

	var result enrichResponse
	err := anthropic.CompleteJSON(ctx, e.ai, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: 1024,
		System:    enrichPrompt,
		User:      sb.String(),
	}, &result)
	if err != nil {
		return nil, eris.Wrap(err, "collab: enrich lead")
	}

	enr := &Enrichment{
		Industry:          strings.TrimSpace(result.Industry),
		CompanySize:       strings.TrimSpace(result.CompanySize),
		EmailPattern:      strings.TrimSpace(result.EmailPattern),
		SignalStrength:    clampScore(result.SignalStrength),
		QualityScore:      clampScore(result.QualityScore),
		VerificationScore: clampScore(result.VerificationScore),
	}
	for _, dm := range result.DecisionMakers {
		name := strings.TrimSpace(dm.Name)
		if name == "" {
			continue
		}
		enr.DecisionMakers = append(enr.DecisionMakers, model.DecisionMaker{
			Name:  name,
			Title: strings.TrimSpace(dm.Role),
		})
	}
	return enr, nil
}

func clampScore(v *float64) *float64 {
	if v == nil {
		return nil
	}
	s := *v
	if s < 0 {
		s = 0
	}
	if s > 1 {
		s = 1
	}
	return &s
}
