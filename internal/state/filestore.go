package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	processedFile = "processed_items.json"
	deletedFile   = "deleted_items.json"
)

// FileStore keeps the sync state in two JSON files under a directory.
// Every mutation is written through immediately so partial runs keep their
// progress.
type FileStore struct {
	dir       string
	processed map[string]time.Time
	deleted   map[string]bool
}

// NewFileStore loads (or initializes) the state directory.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	s := &FileStore{
		dir:       dir,
		processed: map[string]time.Time{},
		deleted:   map[string]bool{},
	}

	if err := s.loadProcessed(); err != nil {
		return nil, err
	}
	if err := s.loadDeleted(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) ShouldProcess(externalID string, now time.Time, reprocessWindowHours int) (bool, error) {
	if s.deleted[externalID] {
		return false, nil
	}
	last, seen := s.processed[externalID]
	if !seen {
		return true, nil
	}
	return due(last, now, reprocessWindowHours), nil
}

func (s *FileStore) IsDeleted(externalID string) (bool, error) {
	return s.deleted[externalID], nil
}

func (s *FileStore) MarkDeleted(externalID string) error {
	if s.deleted[externalID] {
		return nil
	}
	s.deleted[externalID] = true
	return s.saveDeleted()
}

func (s *FileStore) MarkProcessed(externalID string, now time.Time) error {
	s.processed[externalID] = now.UTC()
	return s.saveProcessed()
}

func (s *FileStore) Close() error { return nil }

// Processed returns a copy of the processed map, for state inspection.
func (s *FileStore) Processed() map[string]time.Time {
	out := make(map[string]time.Time, len(s.processed))
	for k, v := range s.processed {
		out[k] = v
	}
	return out
}

// Deleted returns the deleted ids, sorted.
func (s *FileStore) Deleted() []string {
	out := make([]string, 0, len(s.deleted))
	for id := range s.deleted {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *FileStore) loadProcessed() error {
	data, err := os.ReadFile(filepath.Join(s.dir, processedFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading processed state: %w", err)
	}

	raw := map[string]string{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing processed state: %w", err)
	}
	for id, ts := range raw {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			continue // unreadable entries are treated as never processed
		}
		s.processed[id] = t
	}
	return nil
}

func (s *FileStore) saveProcessed() error {
	raw := make(map[string]string, len(s.processed))
	for id, t := range s.processed {
		raw[id] = t.UTC().Format(time.RFC3339)
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding processed state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, processedFile), data, 0o644); err != nil {
		return fmt.Errorf("writing processed state: %w", err)
	}
	return nil
}

func (s *FileStore) loadDeleted() error {
	data, err := os.ReadFile(filepath.Join(s.dir, deletedFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading deleted state: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("parsing deleted state: %w", err)
	}
	for _, id := range ids {
		s.deleted[id] = true
	}
	return nil
}

func (s *FileStore) saveDeleted() error {
	data, err := json.MarshalIndent(s.Deleted(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding deleted state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, deletedFile), data, 0o644); err != nil {
		return fmt.Errorf("writing deleted state: %w", err)
	}
	return nil
}
