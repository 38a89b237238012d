// Package state persists the pipeline's only cross-run memory: which items
// were processed when, and which the registry's users have deleted.
package state

import "time"

// Store is the sync state contract. A single writer is assumed; concurrent
// pipeline invocations against the same state are not supported.
type Store interface {
	// ShouldProcess reports whether an item is due: never when deleted,
	// always when never seen, otherwise when the reprocess window elapsed.
	ShouldProcess(externalID string, now time.Time, reprocessWindowHours int) (bool, error)
	// IsDeleted reports whether the id is in the sticky deleted set.
	IsDeleted(externalID string) (bool, error)
	// MarkDeleted permanently suppresses an id. Irreversible through this
	// interface.
	MarkDeleted(externalID string) error
	// MarkProcessed records a successful sync at the given time.
	MarkProcessed(externalID string, now time.Time) error
	Close() error
}

// Inspector is the read-only view both stores expose for the state CLI.
type Inspector interface {
	Processed() map[string]time.Time
	Deleted() []string
}

// DefaultReprocessWindowHours is applied when a caller passes a
// non-positive window.
const DefaultReprocessWindowHours = 24

func due(lastProcessed time.Time, now time.Time, reprocessWindowHours int) bool {
	if reprocessWindowHours <= 0 {
		reprocessWindowHours = DefaultReprocessWindowHours
	}
	return now.Sub(lastProcessed) >= time.Duration(reprocessWindowHours)*time.Hour
}
