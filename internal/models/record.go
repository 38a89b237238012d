package models

// Sentinels used across extraction, enrichment and sync.
const (
	DeadlineTBD  = "TBD"
	NotSpecified = "Not specified"
)

// ProgramTypes is the closed set of accepted program_type values.
var ProgramTypes = []string{
	"grant",
	"residency",
	"open_call",
	"fellowship",
	"competition",
	"fair_exhibition",
}

// FactCheck confidence levels.
const (
	ConfidenceVerified             = "verified"
	ConfidenceOfficialSingleSource = "official_single_source"
	ConfidenceLow                  = "low_confidence"
)

type Source struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type ProgramDates struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
}

type FactCheck struct {
	Confidence string `json:"confidence,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// OpportunityRecord is the validated canonical output of extraction.
// Optional array fields stay nil when nothing was found so they serialize
// as absent, never as []. Records are constructed once by the extraction
// engine and re-created, not mutated, on reprocessing.
type OpportunityRecord struct {
	ExternalID        string        `json:"external_id"`
	Title             string        `json:"title"`
	Summary           string        `json:"summary"`
	Content           string        `json:"content"`
	ProgramType       string        `json:"program_type"`
	OrganizationName  string        `json:"organization_name"`
	Deadline          string        `json:"application_deadline"`
	Source            Source        `json:"source"`
	Location          string        `json:"location,omitempty"`
	Country           string        `json:"country,omitempty"`
	City              string        `json:"city,omitempty"`
	FundingAmount     string        `json:"funding_amount,omitempty"`
	ParticipationCost string        `json:"participation_cost,omitempty"`
	ProgramDates      *ProgramDates `json:"program_dates,omitempty"`
	Eligibility       []string      `json:"eligibility,omitempty"`
	Disciplines       []string      `json:"disciplines,omitempty"`
	Requirements      []string      `json:"requirements,omitempty"`
	Benefits          []string      `json:"benefits,omitempty"`
	LinkToApply       string        `json:"link_to_apply,omitempty"`
	ContactEmail      string        `json:"contact_email,omitempty"`
	Language          string        `json:"language,omitempty"`
	FactCheck         *FactCheck    `json:"fact_check,omitempty"`
}

// ValidProgramType reports whether v is one of the accepted enum values.
func ValidProgramType(v string) bool {
	for _, t := range ProgramTypes {
		if v == t {
			return true
		}
	}
	return false
}
