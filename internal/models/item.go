package models

import (
	"crypto/sha256"
	"fmt"
)

// RawItem is a single fetched announcement page, ready for extraction.
// It is created once per fetch and never mutated afterwards.
type RawItem struct {
	URL        string
	Markup     string
	SourceName string
	ExternalID string
}

// ExternalID derives the deterministic join key for a (source, url) pair.
// The same pair always yields the same id; it is the only identity the
// pipeline and the remote registry share across runs.
func ExternalID(sourceName, url string) string {
	h := sha256.New()
	h.Write([]byte(sourceName + "|" + url))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// NewRawItem builds a RawItem with its ExternalID populated.
func NewRawItem(sourceName, url, markup string) RawItem {
	return RawItem{
		URL:        url,
		Markup:     markup,
		SourceName: sourceName,
		ExternalID: ExternalID(sourceName, url),
	}
}
