package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klop2495/art-grants-agent/internal/fetch"
)

// mapFetcher serves canned bodies by URL.
type mapFetcher struct {
	pages map[string]string
}

func (f *mapFetcher) Fetch(ctx context.Context, url string) (*fetch.Document, error) {
	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("no canned page for %s", url)
	}
	return &fetch.Document{
		URL:        url,
		StatusCode: 200,
		Body:       []byte(body),
		FetchedAt:  time.Now(),
	}, nil
}

func TestLoadRegistry_EmbeddedDefaultParses(t *testing.T) {
	reg, err := LoadRegistry("")
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.Sources) == 0 {
		t.Fatal("embedded registry has no sources")
	}
	for _, src := range reg.Sources {
		if src.Name == "" || src.Kind == "" {
			t.Fatalf("incomplete source: %+v", src)
		}
	}
}

func TestLoadRegistry_RejectsUnknownKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte("sources:\n  - name: x\n    kind: scrape\n"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := LoadRegistry(path); err == nil {
		t.Fatal("expected an error for unknown kind")
	}
}

func TestItemURLs_StaticDedupesAndCaps(t *testing.T) {
	r := &Resolver{}
	src := SourceConfig{
		Name:     "static-src",
		Kind:     "static",
		URLs:     []string{"https://a.org/1", "https://a.org/1", "https://a.org/2", "https://a.org/3"},
		MaxItems: 2,
	}

	urls, err := r.ItemURLs(context.Background(), src)
	if err != nil {
		t.Fatalf("ItemURLs: %v", err)
	}
	if len(urls) != 2 || urls[0] != "https://a.org/1" || urls[1] != "https://a.org/2" {
		t.Fatalf("urls: %v", urls)
	}
}

func TestItemURLs_ListingResolvesRelativeLinks(t *testing.T) {
	listing := `<html><body>
<article class="call"><a href="/calls/spring-2026">Spring</a></article>
<article class="call"><a href="https://other.org/call">External</a></article>
<article class="call"><a href="#anchor">Skip</a></article>
<a href="/unrelated">Not matched</a>
</body></html>`

	r := &Resolver{Fetcher: &mapFetcher{pages: map[string]string{
		"https://calls.org/open": listing,
	}}}
	src := SourceConfig{
		Name:         "calls",
		Kind:         "listing",
		ListingURL:   "https://calls.org/open",
		ItemSelector: "article.call a",
	}

	urls, err := r.ItemURLs(context.Background(), src)
	if err != nil {
		t.Fatalf("ItemURLs: %v", err)
	}
	want := []string{"https://calls.org/calls/spring-2026", "https://other.org/call"}
	if len(urls) != len(want) {
		t.Fatalf("urls: %v", urls)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Fatalf("url %d: got %q want %q", i, urls[i], want[i])
		}
	}
}

func TestItemURLs_RSSYieldsItemLinks(t *testing.T) {
	feed := `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Announcements</title>
<item><title>Call one</title><link>https://feed.org/calls/1</link></item>
<item><title>Call two</title><link>https://feed.org/calls/2</link></item>
</channel></rss>`

	r := &Resolver{Fetcher: &mapFetcher{pages: map[string]string{
		"https://feed.org/rss": feed,
	}}}
	src := SourceConfig{Name: "feed", Kind: "rss", FeedURL: "https://feed.org/rss"}

	urls, err := r.ItemURLs(context.Background(), src)
	if err != nil {
		t.Fatalf("ItemURLs: %v", err)
	}
	if len(urls) != 2 || urls[0] != "https://feed.org/calls/1" {
		t.Fatalf("urls: %v", urls)
	}
}

func TestItemURLs_SearchWithoutSearcherFails(t *testing.T) {
	r := &Resolver{}
	src := SourceConfig{Name: "s", Kind: "search", Query: "open call"}

	if _, err := r.ItemURLs(context.Background(), src); err == nil {
		t.Fatal("expected an error without a configured searcher")
	}
}
