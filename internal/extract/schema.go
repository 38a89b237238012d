package extract

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/klop2495/art-grants-agent/internal/models"
)

// Bounds enforced by Validate. See also the completeness critical set below.
const (
	TitleMaxLen   = 200
	SummaryMinLen = 20
	ContentMinLen = 120
)

var emailShapeRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// modelRecord is the untrusted shape of the model's JSON output. Content may
// come back as a single string or as an array of paragraph segments, so it
// is deferred to the enrichment pass.
type modelRecord struct {
	Title             string               `json:"title"`
	Summary           string               `json:"summary"`
	Content           json.RawMessage      `json:"content"`
	ProgramType       string               `json:"program_type"`
	OrganizationName  string               `json:"organization_name"`
	Deadline          string               `json:"application_deadline"`
	Location          string               `json:"location"`
	Country           string               `json:"country"`
	City              string               `json:"city"`
	FundingAmount     string               `json:"funding_amount"`
	ParticipationCost string               `json:"participation_cost"`
	ProgramDates      *models.ProgramDates `json:"program_dates"`
	Eligibility       []string             `json:"eligibility"`
	Disciplines       []string             `json:"disciplines"`
	Requirements      []string             `json:"requirements"`
	Benefits          []string             `json:"benefits"`
	LinkToApply       string               `json:"link_to_apply"`
	ContactEmail      string               `json:"contact_email"`
	Language          string               `json:"language"`
	FactCheck         *models.FactCheck    `json:"fact_check"`
}

// contentSegments decodes the content field as either a string or a list of
// segments. Unparseable content decodes to nothing rather than failing the
// whole record; validation will catch the short result.
func (m *modelRecord) contentSegments() []string {
	if len(m.Content) == 0 {
		return nil
	}
	var single string
	if err := json.Unmarshal(m.Content, &single); err == nil {
		if strings.TrimSpace(single) == "" {
			return nil
		}
		return []string{single}
	}
	var many []string
	if err := json.Unmarshal(m.Content, &many); err == nil {
		var out []string
		for _, seg := range many {
			if strings.TrimSpace(seg) != "" {
				out = append(out, strings.TrimSpace(seg))
			}
		}
		return out
	}
	return nil
}

// Validate checks a candidate record against the schema. It returns the full
// list of violations so retry prompts and logs can show everything at once.
func Validate(rec *models.OpportunityRecord) []string {
	var errs []string

	if strings.TrimSpace(rec.Title) == "" {
		errs = append(errs, "title: required")
	} else if len(rec.Title) > TitleMaxLen {
		errs = append(errs, fmt.Sprintf("title: exceeds %d chars", TitleMaxLen))
	}
	if len(strings.TrimSpace(rec.Summary)) < SummaryMinLen {
		errs = append(errs, fmt.Sprintf("summary: shorter than %d chars", SummaryMinLen))
	}
	if len(strings.TrimSpace(rec.Content)) < ContentMinLen {
		errs = append(errs, fmt.Sprintf("content: shorter than %d chars", ContentMinLen))
	}
	if !models.ValidProgramType(rec.ProgramType) {
		errs = append(errs, fmt.Sprintf("program_type: %q not in enum", rec.ProgramType))
	}
	if strings.TrimSpace(rec.OrganizationName) == "" {
		errs = append(errs, "organization_name: required")
	}
	if !validDeadline(rec.Deadline) {
		errs = append(errs, fmt.Sprintf("application_deadline: %q is neither a date nor TBD", rec.Deadline))
	}
	if rec.LinkToApply != "" && rec.LinkToApply != models.NotSpecified && !isAbsoluteURL(rec.LinkToApply) {
		errs = append(errs, fmt.Sprintf("link_to_apply: %q is not an absolute URL", rec.LinkToApply))
	}
	if rec.ContactEmail != "" && !emailShapeRegex.MatchString(rec.ContactEmail) {
		errs = append(errs, fmt.Sprintf("contact_email: %q is not an address", rec.ContactEmail))
	}
	if rec.Source.Name == "" || rec.Source.URL == "" {
		errs = append(errs, "source: name and url required")
	}

	return errs
}

func validDeadline(v string) bool {
	if strings.EqualFold(strings.TrimSpace(v), models.DeadlineTBD) {
		return true
	}
	_, err := time.Parse("2006-01-02", strings.TrimSpace(v))
	return err == nil
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// criticalFields are the eight optional fields the completeness score counts.
var criticalFields = []func(*models.OpportunityRecord) bool{
	func(r *models.OpportunityRecord) bool { return populated(r.FundingAmount) },
	func(r *models.OpportunityRecord) bool { return populated(r.ParticipationCost) },
	func(r *models.OpportunityRecord) bool { return populated(r.LinkToApply) },
	func(r *models.OpportunityRecord) bool { return populated(r.ContactEmail) },
	func(r *models.OpportunityRecord) bool { return len(r.Eligibility) > 0 },
	func(r *models.OpportunityRecord) bool { return len(r.Disciplines) > 0 },
	func(r *models.OpportunityRecord) bool { return populated(r.Country) },
	func(r *models.OpportunityRecord) bool { return populated(r.City) },
}

func populated(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, models.NotSpecified)
}

// Completeness scores how many of the critical optional fields carry real
// data, in [0, 1].
func Completeness(rec *models.OpportunityRecord) float64 {
	count := 0
	for _, check := range criticalFields {
		if check(rec) {
			count++
		}
	}
	return float64(count) / float64(len(criticalFields))
}
