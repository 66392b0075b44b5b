// Package vault is the source adapter for a directory of markdown files
// using the inline-metadata task syntax.
package vault

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harrisonrobin/vaultsync/pkg/audit"
	"github.com/harrisonrobin/vaultsync/pkg/markdown"
	"github.com/harrisonrobin/vaultsync/pkg/model"
)

// Snapshotter takes a full copy of a file before it is modified.
type Snapshotter interface {
	Snapshot(path, rel string) (string, error)
}

// AuditWriter records a modification after it landed.
type AuditWriter interface {
	Append(e audit.Entry) error
}

type Options struct {
	Root        string
	FilePattern string
	Exclude     []string
	Backups     Snapshotter
	Audit       AuditWriter
	Logger      zerolog.Logger
	Now         func() time.Time
}

// Source reads tasks from a vault and edits them surgically.
type Source struct {
	root    string
	pattern string
	exclude []string
	backups Snapshotter
	audit   AuditWriter
	log     zerolog.Logger
	now     func() time.Time

	mu      sync.Mutex
	digests map[string]string
}

func New(opts Options) *Source {
	s := &Source{
		root:    opts.Root,
		pattern: opts.FilePattern,
		exclude: opts.Exclude,
		backups: opts.Backups,
		audit:   opts.Audit,
		log:     opts.Logger,
		now:     opts.Now,
		digests: make(map[string]string),
	}
	if s.pattern == "" {
		s.pattern = "*.md"
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Source) Root() string { return s.root }

func (s *Source) IDVersion() int { return IDVersion }

func (s *Source) GenerateTaskID(t model.Task) string { return GenerateTaskID(t) }

// ScanTasks walks the vault and parses every task line of every matching file.
func (s *Source) ScanTasks(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	digests := make(map[string]string)

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && (strings.HasPrefix(d.Name(), ".") || s.excluded(rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if s.excluded(rel) {
			return nil
		}
		if ok, _ := filepath.Match(s.pattern, d.Name()); !ok {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		digests[rel] = digest(data)
		tasks = append(tasks, parseFile(rel, string(data))...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan vault: %w", err)
	}

	s.mu.Lock()
	s.digests = digests
	s.mu.Unlock()

	s.log.Debug().Int("tasks", len(tasks)).Int("files", len(digests)).Msg("vault scanned")
	return tasks, nil
}

// excluded matches rel against each exclusion as a path prefix or a glob.
func (s *Source) excluded(rel string) bool {
	for _, ex := range s.exclude {
		ex = strings.Trim(filepath.ToSlash(ex), "/")
		if ex == "" {
			continue
		}
		if rel == ex || strings.HasPrefix(rel, ex+"/") {
			return true
		}
		if ok, _ := filepath.Match(ex, rel); ok {
			return true
		}
	}
	return false
}

// parseFile extracts tasks and their notes: the non-task lines directly
// below a task that are indented deeper than it.
func parseFile(rel, content string) []model.Task {
	lines := splitLines(content)
	var tasks []model.Task
	for i := 0; i < len(lines); i++ {
		text := body(lines[i])
		l, ok := markdown.Parse(text)
		if !ok {
			continue
		}
		task := l.Task()
		if task.Title == "" {
			continue
		}
		task.Origin = model.SourceOrigin(rel, i+1, text)

		depth := indentWidth(l.Indent)
		var notes []string
		for j := i + 1; j < len(lines); j++ {
			next := body(lines[j])
			if strings.TrimSpace(next) == "" || markdown.IsTask(next) || indentWidth(next) <= depth {
				break
			}
			notes = append(notes, strings.TrimSpace(next))
		}
		task.Notes = strings.Join(notes, "\n")
		tasks = append(tasks, task)
	}
	return tasks
}

// HasFileChanged reports whether rel differs from what the last scan read.
// Files never scanned count as changed.
func (s *Source) HasFileChanged(rel string) (bool, error) {
	s.mu.Lock()
	want, ok := s.digests[rel]
	s.mu.Unlock()
	if !ok {
		return true, nil
	}
	data, err := os.ReadFile(s.abs(rel))
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	return digest(data) != want, nil
}

func (s *Source) abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
