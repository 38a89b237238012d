package fetch

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
)

// CollyFetcher is the listing-page Fetcher. It respects robots.txt and
// applies a per-domain delay, which matters when a source registry points
// several listing sources at the same host.
type CollyFetcher struct {
	UserAgent      string
	RequestTimeout time.Duration
	DomainDelay    time.Duration
	MaxBodySize    int
}

func NewCollyFetcher() *CollyFetcher {
	return &CollyFetcher{
		UserAgent:      browserUserAgent,
		RequestTimeout: 30 * time.Second,
		DomainDelay:    1 * time.Second,
		MaxBodySize:    10 * 1024 * 1024,
	}
}

func (f *CollyFetcher) Fetch(ctx context.Context, targetURL string) (*Document, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	c := colly.NewCollector(
		colly.UserAgent(f.UserAgent),
		colly.MaxBodySize(f.MaxBodySize),
		colly.AllowURLRevisit(),
		colly.AllowedDomains(parsed.Host),
		colly.DetectCharset(),
	)
	c.Limit(&colly.LimitRule{
		DomainGlob: "*",
		Delay:      f.DomainDelay,
	})
	c.SetRequestTimeout(f.RequestTimeout)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var doc *Document
	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		doc = &Document{
			URL:         targetURL,
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        r.Body,
			FetchedAt:   time.Now(),
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("fetching %s: %w", targetURL, err)
	})

	if err := c.Visit(targetURL); err != nil {
		return nil, fmt.Errorf("visit failed: %w", err)
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if doc == nil {
		return nil, fmt.Errorf("no response for %s", targetURL)
	}
	return doc, nil
}
