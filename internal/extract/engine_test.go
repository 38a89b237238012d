package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/klop2495/art-grants-agent/internal/models"
	"github.com/klop2495/art-grants-agent/internal/preprocess"
)

// scriptedGenerator returns its responses in order, then errors.
type scriptedGenerator struct {
	responses []string
	calls     int
}

func (g *scriptedGenerator) GenerateCompletion(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	if g.calls >= len(g.responses) {
		g.calls++
		return "", errors.New("script exhausted")
	}
	resp := g.responses[g.calls]
	g.calls++
	return resp, nil
}

func fakeRetry(maxAttempts int, slept *[]time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		Sleep: func(ctx context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			return nil
		},
	}
}

const validModelResponse = `{
	"title": "Island Residency 2026",
	"summary": "A three month residency for emerging artists on the island.",
	"content": ["The residency hosts up to six artists each summer, providing studio space and housing.", "Participants are expected to present their work in an open studio weekend at the end of the stay."],
	"program_type": "residency",
	"organization_name": "Island Arts Foundation",
	"application_deadline": "2026-05-01",
	"link_to_apply": "https://island-arts.org/apply",
	"contact_email": "applications@island-arts.org"
}`

func testItem() models.RawItem {
	return models.NewRawItem("resartis", "https://resartis.org/call/island", "<html><body><p>Island Residency</p></body></html>")
}

func emptyHints() *preprocess.Hints {
	return &preprocess.Hints{Excerpts: map[string]string{}}
}

func TestExtract_ValidFirstAttempt(t *testing.T) {
	var slept []time.Duration
	gen := &scriptedGenerator{responses: []string{validModelResponse}}
	engine := NewEngine(gen, fakeRetry(3, &slept), 0)

	rec, err := engine.Extract(context.Background(), testItem(), emptyHints())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a record")
	}
	if rec.Title != "Island Residency 2026" {
		t.Fatalf("title: %q", rec.Title)
	}
	if rec.ExternalID != testItem().ExternalID {
		t.Fatalf("external id not carried over: %q", rec.ExternalID)
	}
	if rec.Source.Name != "resartis" || rec.Source.URL != "https://resartis.org/call/island" {
		t.Fatalf("source: %+v", rec.Source)
	}
	if !strings.Contains(rec.Content, "open studio weekend") {
		t.Fatalf("content segments not joined: %q", rec.Content)
	}
	if len(slept) != 0 {
		t.Fatalf("no retries expected, slept %v", slept)
	}
}

func TestExtract_RetriesThenSucceeds(t *testing.T) {
	var slept []time.Duration
	gen := &scriptedGenerator{responses: []string{
		"I could not find any JSON to extract.",
		`{"title": ""}`,
		"```json\n" + validModelResponse + "\n```",
	}}
	engine := NewEngine(gen, fakeRetry(3, &slept), 0)

	rec, err := engine.Extract(context.Background(), testItem(), emptyHints())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a record on the final attempt")
	}
	if gen.calls != 3 {
		t.Fatalf("expected 3 model calls, got %d", gen.calls)
	}
	if len(slept) != 2 || slept[0] != 2*time.Second || slept[1] != 4*time.Second {
		t.Fatalf("backoff schedule: %v", slept)
	}
}

func TestExtract_ExhaustionIsSoftFailure(t *testing.T) {
	var slept []time.Duration
	gen := &scriptedGenerator{responses: []string{"nope", "nope", "nope"}}
	engine := NewEngine(gen, fakeRetry(3, &slept), 0)

	rec, err := engine.Extract(context.Background(), testItem(), emptyHints())
	if err != nil {
		t.Fatalf("exhaustion must not be an error: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record, got %+v", rec)
	}
	if gen.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", gen.calls)
	}
}

func TestExtract_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var slept []time.Duration
	gen := &scriptedGenerator{responses: []string{validModelResponse}}
	engine := NewEngine(gen, fakeRetry(3, &slept), 0)

	if _, err := engine.Extract(ctx, testItem(), emptyHints()); err == nil {
		t.Fatal("expected a context error")
	}
}

func TestExtract_LowCompletenessFlagged(t *testing.T) {
	var slept []time.Duration
	gen := &scriptedGenerator{responses: []string{validModelResponse}}
	engine := NewEngine(gen, fakeRetry(3, &slept), 0)

	rec, err := engine.Extract(context.Background(), testItem(), emptyHints())
	if err != nil || rec == nil {
		t.Fatalf("Extract: rec=%v err=%v", rec, err)
	}
	// Only link and email of the eight critical fields are present.
	if rec.FactCheck == nil || !strings.Contains(rec.FactCheck.Notes, "Low completeness") {
		t.Fatalf("expected a low completeness note, got %+v", rec.FactCheck)
	}
}

func TestExtract_ContentFallsBackToPageText(t *testing.T) {
	response := `{
		"title": "Island Residency 2026",
		"summary": "A three month residency for emerging artists on the island.",
		"content": ["Open call.", "Apply soon.", "Island based."],
		"program_type": "residency",
		"organization_name": "Island Arts Foundation",
		"application_deadline": "TBD"
	}`
	hints := emptyHints()
	hints.CleanText = strings.Repeat("The island residency program welcomes artists of all disciplines. ", 3)

	var slept []time.Duration
	gen := &scriptedGenerator{responses: []string{response}}
	engine := NewEngine(gen, fakeRetry(3, &slept), 0)

	rec, err := engine.Extract(context.Background(), testItem(), hints)
	if err != nil || rec == nil {
		t.Fatalf("Extract: rec=%v err=%v", rec, err)
	}
	if !strings.Contains(rec.Content, "welcomes artists") {
		t.Fatalf("content fallback not applied: %q", rec.Content)
	}
	if rec.Deadline != models.DeadlineTBD {
		t.Fatalf("deadline: %q", rec.Deadline)
	}
}

func TestBuildPrompt_TruncatesAtBudget(t *testing.T) {
	var slept []time.Duration
	engine := NewEngine(&scriptedGenerator{}, fakeRetry(1, &slept), 100)

	item := models.NewRawItem("s", "https://example.org", strings.Repeat("a", 500))
	prompt := engine.buildPrompt(item, emptyHints())

	if !strings.Contains(prompt, "[truncated]") {
		t.Fatal("expected truncation marker")
	}
	if strings.Contains(prompt, strings.Repeat("a", 101)) {
		t.Fatal("markup not truncated to the budget")
	}
}
