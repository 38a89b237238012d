// Package sources resolves the configured source registry into candidate
// item URLs. It is the boundary between "where announcements live" and the
// pipeline, which only ever sees RawItems.
package sources

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// Registry holds the configuration for all announcement sources.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// SourceConfig defines a single announcement source.
type SourceConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"` // "static", "listing", "rss", "search"

	// static
	URLs []string `yaml:"urls,omitempty"`

	// listing
	ListingURL   string `yaml:"listing_url,omitempty"`
	ItemSelector string `yaml:"item_selector,omitempty"` // CSS selector for item anchors

	// rss
	FeedURL string `yaml:"feed_url,omitempty"`

	// search
	Query  string `yaml:"query,omitempty"`
	Domain string `yaml:"domain,omitempty"`

	MaxItems int `yaml:"max_items,omitempty"`
}

// LoadRegistry reads the embedded sources.yaml, or the file at path when
// one is given. Environment references like ${API_KEY} are expanded.
func LoadRegistry(path string) (*Registry, error) {
	var data []byte
	var err error
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = sourcesYAML.ReadFile("config/sources.yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("reading sources registry: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("parsing sources registry: %w", err)
	}

	for i, src := range reg.Sources {
		if src.Name == "" {
			return nil, fmt.Errorf("source %d: name is required", i)
		}
		switch src.Kind {
		case "static", "listing", "rss", "search":
		default:
			return nil, fmt.Errorf("source %q: unknown kind %q", src.Name, src.Kind)
		}
	}

	return &reg, nil
}
