package preprocess

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	rpdf "rsc.io/pdf"
)

var guidelineAnchorRegex = regexp.MustCompile(`(?i)(guidelines?|bases|regulations?|terms|conditions|calendar|schedule|timeline|deadlines)`)

// GuidelinePDFLinks returns absolute URLs of PDFs the page links as
// guidelines/terms documents, in document order.
func GuidelinePDFLinks(markup, sourceURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}
	base, baseErr := url.Parse(sourceURL)

	var out []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		hrefLower := strings.ToLower(strings.TrimSpace(href))
		anchorText := strings.ToLower(cleanText(sel.Text()))
		if !strings.Contains(hrefLower, ".pdf") {
			return
		}
		if !guidelineAnchorRegex.MatchString(anchorText) && !guidelineAnchorRegex.MatchString(hrefLower) {
			return
		}

		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := href
		if ref.IsAbs() {
			abs = ref.String()
		} else if baseErr == nil {
			abs = base.ResolveReference(ref).String()
		} else {
			return
		}
		out = appendUnique(out, abs)
	})

	return out
}

// PDFText extracts plain text from a PDF payload. The parser panics on some
// malformed files, so the panic is converted to an error.
func PDFText(content []byte) (text string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("pdf parser panic: %v", recovered)
			text = ""
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		for _, fragment := range page.Content().Text {
			builder.WriteString(fragment.S)
			builder.WriteString(" ")
		}
		builder.WriteString("\n")
	}

	return builder.String(), nil
}

// DeadlineSnippet scans free text for a deadline keyword near a date token
// and returns the surrounding line, or "".
func DeadlineSnippet(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = cleanText(line)
		if line == "" || len(line) > 400 {
			continue
		}
		lower := strings.ToLower(line)
		if matchesAny(lower, excerptKeywords["deadline"]) && dateTokenRegex.MatchString(lower) {
			return line
		}
	}
	return ""
}
