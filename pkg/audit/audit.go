// Package audit keeps an append-only, human-readable trail of every text-store
// modification, with enough detail to reverse each one by hand.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxBytes is the rotation threshold when none is configured.
const DefaultMaxBytes int64 = 1 << 20

const archiveLayout = "20060102T150405.000000000"

// Entry is one modification of one line.
type Entry struct {
	ID     string
	Time   time.Time
	Action string
	File   string
	Line   int
	Before string
	After  string
}

// Log appends entries to a file, archiving it once it grows past MaxBytes.
type Log struct {
	Path     string
	MaxBytes int64

	mu  sync.Mutex
	now func() time.Time
}

func New(path string, maxBytes int64) *Log {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Log{Path: path, MaxBytes: maxBytes, now: time.Now}
}

// Append writes e, filling in ID and Time when empty.
func (l *Log) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = l.now()
	}
	if err := os.MkdirAll(filepath.Dir(l.Path), 0700); err != nil {
		return fmt.Errorf("audit: create dir: %w", err)
	}
	if err := l.rotate(); err != nil {
		return err
	}

	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("audit: open: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(format(e)); err != nil {
		return fmt.Errorf("audit: write: %w", err)
	}
	return f.Sync()
}

// rotate renames the current file to an archive when it is over the
// threshold. Archives are never deleted here.
func (l *Log) rotate() error {
	info, err := os.Stat(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("audit: stat: %w", err)
	}
	if info.Size() < l.MaxBytes {
		return nil
	}
	archive := l.Path + "." + l.now().UTC().Format(archiveLayout)
	if err := os.Rename(l.Path, archive); err != nil {
		return fmt.Errorf("audit: rotate: %w", err)
	}
	return nil
}

// Archives lists rotated files, oldest first.
func (l *Log) Archives() ([]string, error) {
	return filepath.Glob(l.Path + ".*")
}

func format(e Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s %s:%d\n", e.Time.UTC().Format(time.RFC3339), e.ID, e.Action, e.File, e.Line)
	fmt.Fprintf(&b, "- %s\n", e.Before)
	fmt.Fprintf(&b, "+ %s\n", e.After)
	return b.String()
}
