package relevance

import (
	"fmt"
	"strings"
	"time"

	"github.com/klop2495/art-grants-agent/internal/models"
)

// Verdict is the outcome of the temporal relevance check.
type Verdict struct {
	Relevant bool
	Reason   string
	Note     string
}

// IsRelevant decides whether a record is still actionable on the given day.
// today is the caller's calendar date; a deadline equal to today counts as
// relevant. "TBD" and unparseable values resolve to unknown, not past.
// Comparisons are between calendar dates, never timestamps.
func IsRelevant(rec *models.OpportunityRecord, today time.Time) Verdict {
	today = Midnight(today)

	deadline, deadlineKnown := parseDay(rec.Deadline)
	var start, end time.Time
	var startKnown, endKnown bool
	if rec.ProgramDates != nil {
		start, startKnown = parseDay(rec.ProgramDates.StartDate)
		end, endKnown = parseDay(rec.ProgramDates.EndDate)
	}

	if deadlineKnown && !deadline.Before(today) {
		return Verdict{Relevant: true}
	}
	if startKnown && !start.Before(today) {
		return Verdict{Relevant: true}
	}
	if endKnown && !end.Before(today) {
		return Verdict{Relevant: true}
	}

	if !deadlineKnown && !startKnown && !endKnown {
		return Verdict{
			Relevant: true,
			Note:     "no parseable dates; retained for manual review",
		}
	}

	resolved := "n/a"
	if deadlineKnown {
		resolved = deadline.Format("2006-01-02")
	}
	return Verdict{
		Relevant: false,
		Reason:   fmt.Sprintf("outdated (deadline: %s)", resolved),
	}
}

// Midnight maps a timestamp to its calendar date, anchored in UTC so date
// comparisons are zone-independent.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func parseDay(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, models.DeadlineTBD) {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
