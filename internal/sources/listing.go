package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// listingURLs fetches an index page and pulls item links out of it with the
// source's CSS selector. Relative hrefs are resolved against the listing URL.
func (r *Resolver) listingURLs(ctx context.Context, src SourceConfig) ([]string, error) {
	if src.ListingURL == "" {
		return nil, fmt.Errorf("listing source needs listing_url")
	}
	selector := src.ItemSelector
	if selector == "" {
		selector = "a"
	}

	doc, err := r.Fetcher.Fetch(ctx, src.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("fetching listing page: %w", err)
	}

	parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return nil, fmt.Errorf("parsing listing page: %w", err)
	}

	base, err := url.Parse(src.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("parsing listing url: %w", err)
	}

	var urls []string
	parsed.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			href, ok = sel.Find("a[href]").First().Attr("href")
			if !ok {
				return
			}
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""
		if abs.String() == src.ListingURL {
			return
		}
		urls = append(urls, abs.String())
	})

	return urls, nil
}
