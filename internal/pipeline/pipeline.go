// Package pipeline runs the full ingest cycle: resolve sources into item
// URLs, fetch each page, extract a structured record, filter stale
// announcements and sync the survivors with the remote registry.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/klop2495/art-grants-agent/internal/config"
	"github.com/klop2495/art-grants-agent/internal/extract"
	"github.com/klop2495/art-grants-agent/internal/fetch"
	"github.com/klop2495/art-grants-agent/internal/models"
	"github.com/klop2495/art-grants-agent/internal/preprocess"
	"github.com/klop2495/art-grants-agent/internal/registry"
	"github.com/klop2495/art-grants-agent/internal/relevance"
	"github.com/klop2495/art-grants-agent/internal/sources"
	"github.com/klop2495/art-grants-agent/internal/state"
)

// Stats aggregates per-run counters. One item lands in exactly one of the
// outcome buckets; Fetched counts pages that were actually downloaded.
type Stats struct {
	RunID    string
	Started  time.Time
	Finished time.Time

	Fetched        int
	SkippedRecent  int
	SkippedDeleted int
	Extracted      int
	Created        int
	Updated        int
	RemoveRequests int
	StaleDropped   int
	Errored        int
}

// Pipeline holds the collaborators for one ingest run. All fields must be
// set except Now, which defaults to time.Now.
type Pipeline struct {
	Cfg      *config.Config
	Fetcher  fetch.Fetcher
	Resolver *sources.Resolver
	Engine   *extract.Engine
	Registry *registry.Client
	State    state.Store
	Now      func() time.Time
	Delay    time.Duration
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Run processes every source in the registry sequentially. Item failures are
// logged and counted but never abort the run; the returned error is non-nil
// only when the run itself cannot proceed (context cancellation).
func (p *Pipeline) Run(ctx context.Context, reg *sources.Registry) (*Stats, error) {
	stats := &Stats{
		RunID:   uuid.NewString(),
		Started: p.now(),
	}
	log.Printf("[pipeline] run %s: %d sources", stats.RunID, len(reg.Sources))

	resolved := 0
	for _, src := range reg.Sources {
		urls, err := p.Resolver.ItemURLs(ctx, src)
		if err != nil {
			log.Printf("[pipeline] source %s: %v", src.Name, err)
			stats.Errored++
			continue
		}
		resolved++
		log.Printf("[pipeline] source %s: %d candidate urls", src.Name, len(urls))

		for _, u := range urls {
			if err := ctx.Err(); err != nil {
				stats.Finished = p.now()
				return stats, fmt.Errorf("run %s interrupted: %w", stats.RunID, err)
			}

			touched, err := p.processItem(ctx, src.Name, u, stats)
			if err != nil {
				if ctx.Err() != nil {
					stats.Finished = p.now()
					return stats, fmt.Errorf("run %s interrupted: %w", stats.RunID, ctx.Err())
				}
				log.Printf("[pipeline] %s: %v", u, err)
				stats.Errored++
			}

			// The delay protects the model and registry APIs, so items
			// skipped from local state alone never pay it.
			if touched && p.Delay > 0 {
				if err := sleepCtx(ctx, p.Delay); err != nil {
					stats.Finished = p.now()
					return stats, fmt.Errorf("run %s interrupted: %w", stats.RunID, err)
				}
			}
		}
	}

	stats.Finished = p.now()
	if len(reg.Sources) > 0 && resolved == 0 {
		return stats, fmt.Errorf("run %s: no source could be resolved", stats.RunID)
	}
	log.Printf("[pipeline] run %s done: created=%d updated=%d stale=%d errors=%d",
		stats.RunID, stats.Created, stats.Updated, stats.StaleDropped, stats.Errored)
	return stats, nil
}

// processItem runs one item through the pipeline. The returned bool reports
// whether the item reached an external dependency (fetch, model or
// registry); only such items owe the inter-item rate-limit delay.
func (p *Pipeline) processItem(ctx context.Context, sourceName, itemURL string, stats *Stats) (bool, error) {
	externalID := models.ExternalID(sourceName, itemURL)

	// Items the registry user removed stay removed. Checked first so a
	// deleted item never costs a fetch or a model call.
	deleted, err := p.State.IsDeleted(externalID)
	if err != nil {
		return false, fmt.Errorf("deleted check: %w", err)
	}
	if deleted {
		stats.SkippedDeleted++
		return false, nil
	}

	proceed, err := p.State.ShouldProcess(externalID, p.now(), p.Cfg.ReprocessWindowHours)
	if err != nil {
		return false, fmt.Errorf("reprocess check: %w", err)
	}
	if !proceed {
		stats.SkippedRecent++
		return false, nil
	}

	doc, err := p.Fetcher.Fetch(ctx, itemURL)
	if err != nil {
		return true, fmt.Errorf("fetch: %w", err)
	}
	stats.Fetched++

	markup := string(doc.Body)
	item := models.NewRawItem(sourceName, itemURL, markup)
	hints := preprocess.Extract(markup, itemURL)
	p.supplementDeadlineHint(ctx, markup, itemURL, hints)

	rec, err := p.Engine.Extract(ctx, item, hints)
	if err != nil {
		return true, fmt.Errorf("extract: %w", err)
	}
	if rec == nil {
		// All attempts exhausted. Left unmarked so the next run retries.
		return true, fmt.Errorf("extract: no valid record after retries")
	}
	stats.Extracted++

	verdict := relevance.IsRelevant(rec, relevance.Midnight(p.now()))
	if !verdict.Relevant {
		log.Printf("[pipeline] %s: dropped, %s", itemURL, verdict.Reason)
		stats.StaleDropped++
		// Marked processed so a dead announcement is not re-extracted
		// every run inside the reprocess window.
		return true, p.State.MarkProcessed(externalID, p.now())
	}
	if verdict.Note != "" {
		log.Printf("[pipeline] %s: %s", itemURL, verdict.Note)
	}

	result, err := p.Registry.Sync(ctx, rec)
	if err != nil {
		return true, fmt.Errorf("sync: %w", err)
	}

	switch result.Action {
	case registry.ActionSkipped:
		if result.Reason == registry.ReasonDeletedByUser {
			stats.RemoveRequests++
			if err := p.State.MarkDeleted(externalID); err != nil {
				return true, fmt.Errorf("marking deleted: %w", err)
			}
		}
		return true, nil
	case registry.ActionCreated:
		stats.Created++
	case registry.ActionUpdated:
		stats.Updated++
	}

	return true, p.State.MarkProcessed(externalID, p.now())
}

// supplementDeadlineHint fills the deadline excerpt from a linked guideline
// PDF when the page itself never mentions one. Only the first candidate PDF
// is tried; failures are silent since the hint is optional.
func (p *Pipeline) supplementDeadlineHint(ctx context.Context, markup, itemURL string, hints *preprocess.Hints) {
	if hints.Excerpts["deadline"] != "" {
		return
	}
	pdfs := preprocess.GuidelinePDFLinks(markup, itemURL)
	if len(pdfs) == 0 {
		return
	}

	doc, err := p.Fetcher.Fetch(ctx, pdfs[0])
	if err != nil {
		return
	}
	if ct := strings.ToLower(doc.ContentType); ct != "" && !strings.Contains(ct, "pdf") {
		return
	}
	text, err := preprocess.PDFText(doc.Body)
	if err != nil {
		return
	}
	if snippet := preprocess.DeadlineSnippet(text); snippet != "" {
		hints.Excerpts["deadline"] = snippet
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
