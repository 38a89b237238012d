package sources

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"
)

// feedURLs fetches an RSS or Atom feed and returns the item links.
func (r *Resolver) feedURLs(ctx context.Context, src SourceConfig) ([]string, error) {
	if src.FeedURL == "" {
		return nil, fmt.Errorf("rss source needs feed_url")
	}

	doc, err := r.Fetcher.Fetch(ctx, src.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(doc.Body))
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	urls := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link != "" {
			urls = append(urls, item.Link)
		}
	}
	return urls, nil
}
