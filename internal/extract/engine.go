package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/klop2495/art-grants-agent/internal/ai"
	"github.com/klop2495/art-grants-agent/internal/models"
	"github.com/klop2495/art-grants-agent/internal/preprocess"
)

// Engine turns one raw announcement page into a validated OpportunityRecord.
type Engine struct {
	AI           ai.Generator
	Retry        RetryPolicy
	MarkupBudget int
}

func NewEngine(generator ai.Generator, retry RetryPolicy, markupBudget int) *Engine {
	if markupBudget <= 0 {
		markupBudget = 12000
	}
	return &Engine{AI: generator, Retry: retry, MarkupBudget: markupBudget}
}

const extractionPrompt = `You are an expert analyst of art-world funding announcements (grants, residencies, open calls, fellowships, competitions, fairs).
Extract ONE opportunity from the page below into a single JSON object.

Fields:
- "title": the opportunity name (max 200 chars).
- "summary": a concise 1-2 sentence overview.
- "content": a DETAILED multi-paragraph description covering objectives, scope, eligibility and conditions. A string, or an array of paragraph strings.
- "program_type": one of: grant, residency, open_call, fellowship, competition, fair_exhibition.
- "organization_name": the organizing institution.
- "application_deadline": ISO date YYYY-MM-DD, or "TBD" if unknown.
- "location", "country", "city": where the program takes place, if stated.
- "funding_amount", "participation_cost": amounts with currency as written, or "Not specified".
- "program_dates": {"start_date": "YYYY-MM-DD", "end_date": "YYYY-MM-DD", "timezone": "..."} if stated.
- "eligibility", "disciplines", "requirements", "benefits": arrays of short strings. OMIT a field entirely if nothing is stated; never return [].
- "link_to_apply": the DIRECT application URL, or "Not specified".
- "contact_email": a contact address, or "".
- "language": ISO code of the page language.
- "fact_check": {"confidence": "verified" | "official_single_source" | "low_confidence", "notes": "..."}.

IMPORTANT RULES:
- Return ONLY a valid JSON object. No markdown blocks, no explanation.
- Do NOT invent data. Only extract what is explicitly stated.

GROUNDING HINTS (heuristically pre-extracted, may help with omitted fields):
%s

PAGE (%s):
%s`

// Extract runs the attempt loop for one item. Exhaustion of the retry
// budget is a soft failure: it returns (nil, nil) and the caller drops the
// item. A non-nil error only means the context ended.
func (e *Engine) Extract(ctx context.Context, item models.RawItem, hints *preprocess.Hints) (*models.OpportunityRecord, error) {
	if hints == nil {
		hints = preprocess.Extract(item.Markup, item.URL)
	}
	prompt := e.buildPrompt(item, hints)

	for attempt := 1; attempt <= e.Retry.MaxAttempts; attempt++ {
		rec, errs := e.attempt(ctx, prompt, item, hints)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if len(errs) == 0 {
			score := applyCompleteness(rec)
			log.Printf("[extract] %s: valid record %q (completeness %.2f)", shortID(item.ExternalID), rec.Title, score)
			return rec, nil
		}

		log.Printf("[extract] %s: attempt %d/%d failed: %s", shortID(item.ExternalID), attempt, e.Retry.MaxAttempts, strings.Join(errs, "; "))
		if attempt < e.Retry.MaxAttempts {
			if err := e.Retry.Sleep(ctx, e.Retry.Backoff(attempt)); err != nil {
				return nil, err
			}
		}
	}

	log.Printf("[extract] %s: giving up after %d attempts", shortID(item.ExternalID), e.Retry.MaxAttempts)
	return nil, nil
}

// attempt makes one model call and returns either a record or the list of
// reasons it was rejected.
func (e *Engine) attempt(ctx context.Context, prompt string, item models.RawItem, hints *preprocess.Hints) (*models.OpportunityRecord, []string) {
	resp, err := e.AI.GenerateCompletion(ctx, prompt, true)
	if err != nil {
		return nil, []string{fmt.Sprintf("model call: %v", err)}
	}

	cleaned := strings.TrimSpace(resp)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	if jsonStr, ok := ai.FirstJSONObject(cleaned); ok {
		cleaned = jsonStr
	}

	var raw modelRecord
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, []string{fmt.Sprintf("response is not a JSON object: %v", err)}
	}

	rec := &models.OpportunityRecord{
		ExternalID:        item.ExternalID,
		Title:             strings.TrimSpace(raw.Title),
		Summary:           strings.TrimSpace(raw.Summary),
		ProgramType:       strings.TrimSpace(raw.ProgramType),
		OrganizationName:  strings.TrimSpace(raw.OrganizationName),
		Deadline:          strings.TrimSpace(raw.Deadline),
		Location:          strings.TrimSpace(raw.Location),
		Country:           strings.TrimSpace(raw.Country),
		City:              strings.TrimSpace(raw.City),
		FundingAmount:     raw.FundingAmount,
		ParticipationCost: raw.ParticipationCost,
		ProgramDates:      raw.ProgramDates,
		Eligibility:       raw.Eligibility,
		Disciplines:       raw.Disciplines,
		Requirements:      raw.Requirements,
		Benefits:          raw.Benefits,
		LinkToApply:       strings.TrimSpace(raw.LinkToApply),
		ContactEmail:      strings.TrimSpace(raw.ContactEmail),
		Language:          strings.TrimSpace(raw.Language),
		FactCheck:         raw.FactCheck,
		Source:            models.Source{Name: item.SourceName, URL: item.URL},
	}

	enrich(rec, raw.contentSegments(), item, hints)

	if errs := Validate(rec); len(errs) > 0 {
		return nil, errs
	}
	return rec, nil
}

func (e *Engine) buildPrompt(item models.RawItem, hints *preprocess.Hints) string {
	markup := item.Markup
	truncated := ""
	if len(markup) > e.MarkupBudget {
		markup = markup[:e.MarkupBudget]
		truncated = " [truncated]"
	}
	return fmt.Sprintf(extractionPrompt, formatHints(hints), item.URL+truncated, markup)
}

func formatHints(hints *preprocess.Hints) string {
	var b strings.Builder
	if len(hints.ApplyLinks) > 0 {
		fmt.Fprintf(&b, "Apply links: %s\n", strings.Join(hints.ApplyLinks, ", "))
	}
	if len(hints.ContactLinks) > 0 {
		fmt.Fprintf(&b, "Contact links: %s\n", strings.Join(hints.ContactLinks, ", "))
	}
	if len(hints.Emails) > 0 {
		fmt.Fprintf(&b, "Emails found on page: %s\n", strings.Join(hints.Emails, ", "))
	}
	for _, category := range []string{"funding", "fees", "deadline"} {
		if excerpt, ok := hints.Excerpts[category]; ok {
			fmt.Fprintf(&b, "Excerpt (%s): %s\n", category, excerpt)
		}
	}
	if b.Len() == 0 {
		return "(none)"
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
