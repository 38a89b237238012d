package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Searcher finds announcement pages through a web search backend.
type Searcher interface {
	Search(ctx context.Context, query, domain string, limit int) ([]string, error)
}

// SearxSearcher queries a SearxNG instance's JSON API. The instance URL is
// typically self-hosted; public instances often block API access.
type SearxSearcher struct {
	BaseURL string
	Client  *http.Client
}

func NewSearxSearcher(baseURL string) *SearxSearcher {
	return &SearxSearcher{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 20 * time.Second},
	}
}

type searxResponse struct {
	Results []struct {
		URL string `json:"url"`
	} `json:"results"`
}

func (s *SearxSearcher) Search(ctx context.Context, query, domain string, limit int) ([]string, error) {
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if domain != "" {
		query = fmt.Sprintf("site:%s %s", domain, query)
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&format=json", s.BaseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var body searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	urls := make([]string, 0, len(body.Results))
	for _, r := range body.Results {
		if r.URL != "" {
			urls = append(urls, r.URL)
		}
		if limit > 0 && len(urls) >= limit {
			break
		}
	}
	return urls, nil
}
