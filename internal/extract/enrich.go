package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/klop2495/art-grants-agent/internal/models"
	"github.com/klop2495/art-grants-agent/internal/preprocess"
)

const contentBoilerplate = "Full details of this opportunity are available on the organizer's announcement page."

var applyPathGuesses = []string{"/apply", "/application", "/submit", "/how-to-apply", "/open-call"}

var emailPrefixGuesses = []string{"info", "contact", "enquiries", "applications", "admissions"}

// enrich fills fields the model omitted, deterministically and before
// validation. It compensates for omissions only; explicit model answers are
// kept as-is.
func enrich(rec *models.OpportunityRecord, segments []string, item models.RawItem, hints *preprocess.Hints) {
	// Content: join segments, then fall back through cleaned text,
	// boilerplate, and summary until the minimum is met.
	rec.Content = strings.TrimSpace(strings.Join(segments, "\n\n"))
	if len(rec.Content) < ContentMinLen && hints.CleanText != "" {
		rec.Content = truncate(hints.CleanText, 2000)
	}
	if len(rec.Content) < ContentMinLen {
		rec.Content = strings.TrimSpace(rec.Content + "\n\n" + contentBoilerplate)
	}
	if len(rec.Content) < ContentMinLen && rec.Summary != "" {
		rec.Content = strings.TrimSpace(rec.Content + "\n\n" + rec.Summary)
	}

	if strings.EqualFold(strings.TrimSpace(rec.Deadline), models.DeadlineTBD) {
		rec.Deadline = models.DeadlineTBD
	}

	enrichApplyLink(rec, item, hints)
	enrichContactEmail(rec, item, hints)

	// Canonical "no data" for money fields.
	rec.FundingAmount = normalizeNoData(rec.FundingAmount)
	rec.ParticipationCost = normalizeNoData(rec.ParticipationCost)

	// Absent optional arrays are nil, never [].
	rec.Eligibility = nilIfEmpty(rec.Eligibility)
	rec.Disciplines = nilIfEmpty(rec.Disciplines)
	rec.Requirements = nilIfEmpty(rec.Requirements)
	rec.Benefits = nilIfEmpty(rec.Benefits)
	if rec.ProgramDates != nil && rec.ProgramDates.StartDate == "" && rec.ProgramDates.EndDate == "" {
		rec.ProgramDates = nil
	}
}

func enrichApplyLink(rec *models.OpportunityRecord, item models.RawItem, hints *preprocess.Hints) {
	if rec.LinkToApply == models.NotSpecified || isAbsoluteURL(rec.LinkToApply) {
		return
	}
	if len(hints.ApplyLinks) > 0 {
		rec.LinkToApply = hints.ApplyLinks[0]
		return
	}
	// Same-origin guess, only when the path is literally in the markup.
	if base, err := url.Parse(item.URL); err == nil {
		for _, path := range applyPathGuesses {
			if strings.Contains(item.Markup, path) {
				guess := *base
				guess.Path = path
				guess.RawQuery = ""
				guess.Fragment = ""
				rec.LinkToApply = guess.String()
				return
			}
		}
	}
	rec.LinkToApply = item.URL
}

func enrichContactEmail(rec *models.OpportunityRecord, item models.RawItem, hints *preprocess.Hints) {
	if strings.EqualFold(strings.TrimSpace(rec.ContactEmail), models.NotSpecified) {
		rec.ContactEmail = ""
	}
	if rec.ContactEmail != "" {
		return
	}
	if len(hints.Emails) > 0 {
		rec.ContactEmail = hints.Emails[0]
		return
	}
	// Constructed guess, only when the exact address appears in the markup.
	base, err := url.Parse(item.URL)
	if err != nil || base.Hostname() == "" {
		return
	}
	domain := strings.TrimPrefix(base.Hostname(), "www.")
	for _, prefix := range emailPrefixGuesses {
		candidate := prefix + "@" + domain
		if strings.Contains(item.Markup, candidate) {
			rec.ContactEmail = candidate
			return
		}
	}
}

// applyCompleteness scores the record and flags low completeness in the
// fact-check notes.
func applyCompleteness(rec *models.OpportunityRecord) float64 {
	score := Completeness(rec)
	if score >= 0.5 {
		return score
	}
	note := fmt.Sprintf("Low completeness (%d%%): several optional fields could not be extracted.", int(score*100))
	if rec.FactCheck == nil {
		rec.FactCheck = &models.FactCheck{Confidence: models.ConfidenceLow}
	}
	if rec.FactCheck.Notes == "" {
		rec.FactCheck.Notes = note
	} else {
		rec.FactCheck.Notes = note + " " + rec.FactCheck.Notes
	}
	return score
}

func normalizeNoData(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, models.NotSpecified) || strings.EqualFold(v, "null") || strings.EqualFold(v, "none") {
		return ""
	}
	return v
}

func nilIfEmpty(list []string) []string {
	var out []string
	for _, v := range list {
		if strings.TrimSpace(v) != "" {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
