// Package state persists the mapping between source IDs and destination IDs
// together with the content hash each task had when it was last synced.
package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

// Entry links one source task to its destination counterpart.
type Entry struct {
	SourceID      string `json:"source_id"`
	DestinationID string `json:"destination_id"`
	Hash          string `json:"hash"`
	Version       int    `json:"version"`
}

// Store is the sync state. It is read at the start of a run and saved once
// at the end.
type Store struct {
	Version  int              `json:"version"`
	LastSync time.Time        `json:"last_sync"`
	Entries  map[string]Entry `json:"entries"`

	Path    string `json:"-"`
	cleared bool
	mu      sync.RWMutex
	dirty   bool
}

// Load reads the store at path. A file written under a different version is
// discarded as a whole, and so is any entry whose own version differs: the
// returned store is then empty and Cleared reports true.
func Load(path string, version int) (*Store, error) {
	s := &Store{
		Version: version,
		Entries: make(map[string]Entry),
		Path:    path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read sync state: %w", err)
	}

	var onDisk Store
	if err := json.Unmarshal(data, &onDisk); err != nil {
		return nil, fmt.Errorf("decode sync state %s: %w; move the file aside to start over (every vault task is then created again)", path, err)
	}
	s.LastSync = onDisk.LastSync
	if onDisk.Version != version {
		s.cleared = len(onDisk.Entries) > 0 || onDisk.Version != 0
		s.dirty = true
		return s, nil
	}
	for id, e := range onDisk.Entries {
		if e.Version != version || e.SourceID != id {
			s.cleared = true
			s.dirty = true
			continue
		}
		s.Entries[id] = e
	}
	return s, nil
}

// Cleared reports whether Load dropped mappings because of a version change.
func (s *Store) Cleared() bool { return s.cleared }

func (s *Store) Get(sourceID string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.Entries[sourceID]
	return e, ok
}

// Set stores e under its source ID, stamping the store version.
func (s *Store) Set(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Version = s.Version
	if s.Entries[e.SourceID] != e {
		s.Entries[e.SourceID] = e
		s.dirty = true
	}
}

func (s *Store) Remove(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.Entries[sourceID]; exists {
		delete(s.Entries, sourceID)
		s.dirty = true
	}
}

// List returns all entries ordered by source ID.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.Entries))
	for _, e := range s.Entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Entries)
}

// Save writes the store atomically, stamping LastSync.
func (s *Store) Save(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastSync = now
	if err := os.MkdirAll(filepath.Dir(s.Path), 0700); err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	if err := atomic.WriteFile(s.Path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	s.dirty = false
	return nil
}

// Dirty reports unsaved changes.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}
