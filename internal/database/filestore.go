package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	apperrors "tweetgram/internal/errors"
	"tweetgram/internal/models"
)

const fileStoreVersion = "1.0"

// fileStorePayload is the on-disk JSON format: identifiers mapped to the
// RFC 3339 time they were first recorded.
type fileStorePayload struct {
	Version      string            `json:"version"`
	LastUpdated  string            `json:"last_updated"`
	ProcessedIDs map[string]string `json:"processed_ids"`
}

// FileStore is the JSON-file-backed record of already-forwarded inbound
// message identifiers, for deployments without sqlite. Every mutation is
// written to a temp file and renamed into place, so a crash never leaves a
// partially written record set.
type FileStore struct {
	path       string
	maxAgeDays int
	hasher     *idHasher

	mu        sync.Mutex
	processed map[string]time.Time
}

// NewFileStore loads (or creates) the store at path, dropping records older
// than maxAgeDays during load.
func NewFileStore(path string, maxAgeDays int) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	hasher, err := newIDHasher()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize hasher: %w", err)
	}

	s := &FileStore{
		path:       path,
		maxAgeDays: maxAgeDays,
		hasher:     hasher,
		processed:  make(map[string]time.Time),
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read store file: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -s.maxAgeDays)

	var payload fileStorePayload
	if err := json.Unmarshal(data, &payload); err == nil && payload.ProcessedIDs != nil {
		for id, stamp := range payload.ProcessedIDs {
			seen, parseErr := time.Parse(time.RFC3339, stamp)
			if parseErr != nil {
				// A record with a mangled timestamp is kept rather than
				// risking a duplicate forward.
				s.processed[id] = time.Now()
				continue
			}
			if seen.After(cutoff) {
				s.processed[id] = seen
			}
		}
		return nil
	}

	// Legacy format: a bare list of identifiers with no timestamps
	var legacy []string
	if err := json.Unmarshal(data, &legacy); err == nil {
		now := time.Now()
		for _, id := range legacy {
			s.processed[id] = now
		}
		return nil
	}

	return apperrors.New(apperrors.ErrCodeStoreCorrupt, "unrecognized store file format").
		WithContext("path", s.path)
}

// save writes the full record set atomically. Callers must hold s.mu.
func (s *FileStore) save() error {
	payload := fileStorePayload{
		Version:      fileStoreVersion,
		LastUpdated:  time.Now().Format(time.RFC3339),
		ProcessedIDs: make(map[string]string, len(s.processed)),
	}
	for id, seen := range s.processed {
		payload.ProcessedIDs[id] = seen.Format(time.RFC3339)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store file: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return apperrors.NewStoreError("save", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return apperrors.NewStoreError("save", err)
	}
	return nil
}

// IsProcessed reports whether the message identifier was already forwarded
func (s *FileStore) IsProcessed(_ context.Context, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[s.hasher.Hash(messageID)]
	return ok, nil
}

// MarkProcessed records the identifier as forwarded and persists the change
// before returning. Marking twice is harmless.
func (s *FileStore) MarkProcessed(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.hasher.Hash(messageID)
	if _, ok := s.processed[key]; ok {
		return nil
	}
	s.processed[key] = time.Now()
	return s.save()
}

// Count returns the number of live records
func (s *FileStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processed), nil
}

// Cleanup drops every record older than the configured retention window and
// persists the compacted set
func (s *FileStore) Cleanup(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -s.maxAgeDays)
	removed := 0
	for id, seen := range s.processed {
		if !seen.After(cutoff) {
			delete(s.processed, id)
			removed++
		}
	}
	if removed == 0 {
		return nil
	}
	return s.save()
}

// Stats returns a health snapshot of the store
func (s *FileStore) Stats(_ context.Context) models.DedupStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.DedupStats{
		TotalProcessed: len(s.processed),
		Backend:        "file",
		Path:           s.path,
		MaxAgeDays:     s.maxAgeDays,
	}
}

// Close is a no-op for the file backend; it exists so both backends satisfy
// the same interface.
func (s *FileStore) Close() error {
	return nil
}
