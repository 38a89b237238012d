package preprocess

import (
	"strings"
	"testing"
)

const samplePage = `<html><head><style>body{color:red}</style></head><body>
<h1>Open Call: Island Residency 2026</h1>
<p>The program offers a stipend of €2,000 for the full stay.</p>
<p>Participation fee: $150 due on acceptance.</p>
<p>Application deadline: 2026-05-01. Late entries are not considered.</p>
<p>Questions? Write to applications@island-arts.org or press@island-arts.org.</p>
<a href="/apply">Apply now</a>
<a href="/contact-us">Contact</a>
<a href="#top">Back to top</a>
<a href="javascript:void(0)">Menu</a>
<a href="mailto:press@island-arts.org">Press</a>
<script>console.log("tracking")</script>
</body></html>`

func TestExtract_PartitionsLinks(t *testing.T) {
	hints := Extract(samplePage, "https://island-arts.org/open-call")

	if len(hints.ApplyLinks) != 1 || hints.ApplyLinks[0] != "https://island-arts.org/apply" {
		t.Fatalf("apply links: %v", hints.ApplyLinks)
	}
	if len(hints.ContactLinks) != 1 || hints.ContactLinks[0] != "https://island-arts.org/contact-us" {
		t.Fatalf("contact links: %v", hints.ContactLinks)
	}
	for _, link := range append(hints.ApplyLinks, hints.ContactLinks...) {
		if strings.Contains(link, "#") || strings.Contains(link, "javascript") || strings.Contains(link, "mailto") {
			t.Fatalf("unusable link survived: %s", link)
		}
	}
}

func TestExtract_PriorityEmailsWin(t *testing.T) {
	hints := Extract(samplePage, "https://island-arts.org/open-call")

	if len(hints.Emails) != 1 || hints.Emails[0] != "applications@island-arts.org" {
		t.Fatalf("expected the applications address only, got %v", hints.Emails)
	}
}

func TestExtract_GenericEmailsKeptWithoutPriorityMatch(t *testing.T) {
	page := `<p>Reach us at hello@example.org or press@example.org.</p>`
	hints := Extract(page, "https://example.org")

	if len(hints.Emails) != 2 {
		t.Fatalf("expected both generic addresses, got %v", hints.Emails)
	}
}

func TestExtract_ExcerptsRequireQualifyingPattern(t *testing.T) {
	hints := Extract(samplePage, "https://island-arts.org/open-call")

	if !strings.Contains(hints.Excerpts["funding"], "€2,000") {
		t.Fatalf("funding excerpt: %q", hints.Excerpts["funding"])
	}
	if !strings.Contains(hints.Excerpts["fees"], "$150") {
		t.Fatalf("fees excerpt: %q", hints.Excerpts["fees"])
	}
	if !strings.Contains(hints.Excerpts["deadline"], "2026-05-01") {
		t.Fatalf("deadline excerpt: %q", hints.Excerpts["deadline"])
	}
}

func TestExtract_KeywordWithoutPatternIsSkipped(t *testing.T) {
	page := `<p>Funding decisions are announced by the jury.</p>
<p>The deadline will be announced soon.</p>`
	hints := Extract(page, "https://example.org")

	if _, ok := hints.Excerpts["funding"]; ok {
		t.Fatalf("funding excerpt without an amount: %q", hints.Excerpts["funding"])
	}
	if _, ok := hints.Excerpts["deadline"]; ok {
		t.Fatalf("deadline excerpt without a date token: %q", hints.Excerpts["deadline"])
	}
}

func TestExtract_CleanTextStripsScriptsAndCollapsesSpace(t *testing.T) {
	hints := Extract(samplePage, "https://island-arts.org/open-call")

	if strings.Contains(hints.CleanText, "tracking") {
		t.Fatal("script content leaked into clean text")
	}
	if strings.Contains(hints.CleanText, "color:red") {
		t.Fatal("style content leaked into clean text")
	}
	if strings.Contains(hints.CleanText, "\n") || strings.Contains(hints.CleanText, "  ") {
		t.Fatal("whitespace not collapsed")
	}
}

func TestExtract_NeverFails(t *testing.T) {
	hints := Extract("<<<< not html at all", "://bad-url")
	if hints == nil {
		t.Fatal("expected hints, got nil")
	}
}
