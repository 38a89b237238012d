package sources

import (
	"context"
	"fmt"

	"github.com/klop2495/art-grants-agent/internal/fetch"
)

// Resolver turns source configurations into lists of candidate item URLs.
// It does not fetch the items themselves; that is the pipeline's job.
type Resolver struct {
	Fetcher  fetch.Fetcher
	Searcher Searcher
}

// ItemURLs resolves a single source into candidate announcement URLs,
// deduplicated and capped at the source's max_items when set.
func (r *Resolver) ItemURLs(ctx context.Context, src SourceConfig) ([]string, error) {
	var urls []string
	var err error

	switch src.Kind {
	case "static":
		urls = append(urls, src.URLs...)
	case "listing":
		urls, err = r.listingURLs(ctx, src)
	case "rss":
		urls, err = r.feedURLs(ctx, src)
	case "search":
		if r.Searcher == nil {
			return nil, fmt.Errorf("source %q: no searcher configured", src.Name)
		}
		urls, err = r.Searcher.Search(ctx, src.Query, src.Domain, src.MaxItems)
	default:
		return nil, fmt.Errorf("source %q: unknown kind %q", src.Name, src.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving source %q: %w", src.Name, err)
	}

	urls = dedupe(urls)
	if src.MaxItems > 0 && len(urls) > src.MaxItems {
		urls = urls[:src.MaxItems]
	}
	return urls, nil
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	var out []string
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
