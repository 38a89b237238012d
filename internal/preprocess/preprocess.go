package preprocess

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// Hints is the ephemeral, heuristic view of one announcement page used to
// ground the model call and the enrichment pass. Never persisted.
type Hints struct {
	ApplyLinks   []string
	ContactLinks []string
	Emails       []string
	// Excerpts holds up to one keyword-anchored block per category
	// ("funding", "fees", "deadline").
	Excerpts  map[string]string
	CleanText string
}

var (
	emailRegex     = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	currencyRegex  = regexp.MustCompile(`(?i)([$€£¥]\s?\d[\d.,]*|\b\d[\d.,]*\s?(usd|eur|gbp|chf|cad|aud|sek|nok|dkk|pln|jpy)\b)`)
	dateTokenRegex = regexp.MustCompile(`(?i)(\b20\d{2}-\d{2}-\d{2}\b|\b\d{1,2}[/.]\d{1,2}[/.]20\d{2}\b|\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec)\b)`)

	applyHints   = []string{"apply", "application", "submit", "call", "register", "enrollment"}
	contactHints = []string{"contact", "email", "reach", "inquiries"}

	// Addresses matching these fragments are preferred over generic ones.
	priorityEmailHints = []string{"admissions", "applications", "residency", "grants", "info"}
)

var excerptKeywords = map[string][]string{
	"funding":  {"funding", "grant amount", "stipend", "award", "budget", "remuneration"},
	"fees":     {"fee", "fees", "cost", "tuition", "participation cost"},
	"deadline": {"deadline", "apply by", "applications close", "closing date", "due date", "submission"},
}

var strictPolicy = bluemonday.StrictPolicy()

// Extract runs all heuristics over one page. It never fails: malformed
// markup or unresolvable links degrade to smaller hint sets.
func Extract(markup, sourceURL string) *Hints {
	hints := &Hints{Excerpts: map[string]string{}}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		hints.CleanText = cleanText(strictPolicy.Sanitize(markup))
		hints.Emails = candidateEmails(hints.CleanText)
		return hints
	}

	doc.Find("script, style, noscript").Remove()
	hints.CleanText = cleanText(doc.Text())
	hints.Emails = candidateEmails(hints.CleanText)
	hints.ApplyLinks, hints.ContactLinks = partitionLinks(doc, sourceURL)

	for category := range excerptKeywords {
		if excerpt := findExcerpt(doc, category); excerpt != "" {
			hints.Excerpts[category] = excerpt
		}
	}

	return hints
}

// partitionLinks splits anchors into apply-like and contact-like sets,
// resolving relative hrefs against the source URL. Offending links are
// dropped, not reported.
func partitionLinks(doc *goquery.Document, sourceURL string) (apply, contact []string) {
	base, baseErr := url.Parse(sourceURL)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}

		anchorText := strings.ToLower(cleanText(sel.Text()))
		hrefLower := strings.ToLower(href)

		abs := href
		if ref, err := url.Parse(href); err == nil {
			if ref.IsAbs() {
				abs = ref.String()
			} else if baseErr == nil {
				abs = base.ResolveReference(ref).String()
			} else {
				return
			}
		} else {
			return
		}
		if strings.HasPrefix(strings.ToLower(abs), "mailto:") {
			return
		}

		if matchesAny(hrefLower, applyHints) || matchesAny(anchorText, applyHints) {
			apply = appendUnique(apply, abs)
			return
		}
		if matchesAny(hrefLower, contactHints) || matchesAny(anchorText, contactHints) {
			contact = appendUnique(contact, abs)
		}
	})

	return apply, contact
}

// candidateEmails returns deduplicated addresses found in text. When any
// address matches a priority keyword, only the priority subset is returned.
func candidateEmails(text string) []string {
	var all []string
	for _, m := range emailRegex.FindAllString(text, -1) {
		all = appendUnique(all, strings.TrimRight(m, "."))
	}
	if len(all) == 0 {
		return nil
	}

	var priority []string
	for _, addr := range all {
		if matchesAny(strings.ToLower(addr), priorityEmailHints) {
			priority = append(priority, addr)
		}
	}
	if len(priority) > 0 {
		return priority
	}
	return all
}

// findExcerpt scans block-level elements for a category keyword co-occurring
// with its qualifying pattern (currency amount for funding/fees, date token
// for deadline). First qualifying block wins.
func findExcerpt(doc *goquery.Document, category string) string {
	keywords := excerptKeywords[category]
	found := ""

	doc.Find("p, li, td, th, div, h1, h2, h3, h4, h5, h6, dd, dt").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.Children().Is("p, li, div, table, ul, ol") {
			return true // keep descending; only leaf-ish blocks qualify
		}
		text := cleanText(sel.Text())
		if text == "" || len(text) > 400 {
			return true
		}
		lower := strings.ToLower(text)
		if !matchesAny(lower, keywords) {
			return true
		}

		switch category {
		case "deadline":
			if !dateTokenRegex.MatchString(lower) {
				return true
			}
		default:
			if !currencyRegex.MatchString(text) {
				return true
			}
		}

		found = text
		return false
	})

	return found
}

func matchesAny(s string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}

// cleanText collapses whitespace and trims.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func appendUnique(list []string, v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return list
	}
	lower := strings.ToLower(v)
	for _, existing := range list {
		if strings.ToLower(existing) == lower {
			return list
		}
	}
	return append(list, v)
}
