// Package synclog keeps the most recent sync results in a capped JSON file.
package synclog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/harrisonrobin/vaultsync/pkg/engine"
)

const DefaultCapacity = 50

type Log struct {
	Capacity int              `json:"capacity"`
	Entries  []*engine.Result `json:"entries"`
	Path     string           `json:"-"`

	mu sync.Mutex
}

// Open loads the log at path. A missing file yields an empty log. When the
// configured capacity is smaller than what the file holds, the oldest
// entries are dropped on the next write.
func Open(path string, capacity int) (*Log, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	entries, err := load(path)
	if err != nil {
		return nil, err
	}
	return &Log{Capacity: capacity, Entries: entries, Path: path}, nil
}

type file struct {
	Entries []*engine.Result `json:"entries"`
}

func load(path string) ([]*engine.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*engine.Result{}, nil
		}
		return nil, fmt.Errorf("open sync log: %w", err)
	}
	defer f.Close()

	var onDisk file
	if err := json.NewDecoder(f).Decode(&onDisk); err != nil {
		return nil, fmt.Errorf("decode sync log: %w", err)
	}
	if onDisk.Entries == nil {
		return []*engine.Result{}, nil
	}
	return onDisk.Entries, nil
}

// Record re-reads the file, appends r, evicts the oldest entries past
// capacity and saves. Another process may have recorded since Open.
func (l *Log) Record(r *engine.Result) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := load(l.Path)
	if err != nil {
		return err
	}
	entries = append(entries, r)
	if over := len(entries) - l.Capacity; over > 0 {
		entries = append([]*engine.Result(nil), entries[over:]...)
	}
	l.Entries = entries
	return l.save()
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (l *Log) Recent(n int) []*engine.Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > len(l.Entries) {
		n = len(l.Entries)
	}
	out := make([]*engine.Result, 0, n)
	for i := len(l.Entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.Entries[i])
	}
	return out
}

// Last returns the newest entry, or nil.
func (l *Log) Last() *engine.Result {
	if recent := l.Recent(1); len(recent) == 1 {
		return recent[0]
	}
	return nil
}

func (l *Log) save() error {
	if err := os.MkdirAll(filepath.Dir(l.Path), 0700); err != nil {
		return fmt.Errorf("save sync log: %w", err)
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("save sync log: %w", err)
	}
	if err := atomic.WriteFile(l.Path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("save sync log: %w", err)
	}
	return nil
}
