// Package backup keeps timestamped full-content copies of text-store files
// taken right before they are modified.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/rs/zerolog"
)

const (
	stampLayout = "20060102T150405.000000000"
	suffix      = ".bak"
)

// Service writes snapshots into Dir and enforces retention per original file.
type Service struct {
	Dir        string
	MaxPerFile int
	MaxAge     time.Duration

	now func() time.Time
	log zerolog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }

func New(dir string, maxPerFile int, maxAge time.Duration, opts ...Option) *Service {
	s := &Service{
		Dir:        dir,
		MaxPerFile: maxPerFile,
		MaxAge:     maxAge,
		now:        time.Now,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot copies the file at path (rel is its vault-relative name) into the
// backup area and prunes old copies of the same file. It returns the backup
// path.
func (s *Service) Snapshot(path, rel string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("backup: read %s: %w", path, err)
	}
	if err := os.MkdirAll(s.Dir, 0700); err != nil {
		return "", fmt.Errorf("backup: create dir: %w", err)
	}

	base := flatten(rel)
	name := base + "." + s.now().UTC().Format(stampLayout) + suffix
	dst := filepath.Join(s.Dir, name)
	if err := atomic.WriteFile(dst, strings.NewReader(string(data))); err != nil {
		return "", fmt.Errorf("backup: write %s: %w", dst, err)
	}
	if err := os.Chmod(dst, 0600); err != nil {
		return "", fmt.Errorf("backup: chmod %s: %w", dst, err)
	}

	if err := s.prune(base, name); err != nil {
		s.log.Warn().Err(err).Str("file", rel).Msg("backup retention failed")
	}
	return dst, nil
}

// List returns the backups of rel, newest first.
func (s *Service) List(rel string) ([]string, error) {
	snaps, err := s.snapshots(flatten(rel))
	if err != nil {
		return nil, err
	}
	out := make([]string, len(snaps))
	for i, snap := range snaps {
		out[i] = filepath.Join(s.Dir, snap.name)
	}
	return out, nil
}

type snapshot struct {
	name  string
	taken time.Time
}

func (s *Service) snapshots(base string) ([]snapshot, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var snaps []snapshot
	prefix := base + "."
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix)
		taken, err := time.Parse(stampLayout, stamp)
		if err != nil {
			continue
		}
		snaps = append(snaps, snapshot{name: name, taken: taken})
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].taken.After(snaps[j].taken) })
	return snaps, nil
}

// prune drops copies past MaxPerFile and older than MaxAge. The snapshot
// just written is always kept.
func (s *Service) prune(base, keep string) error {
	snaps, err := s.snapshots(base)
	if err != nil {
		return err
	}
	cutoff := s.now().Add(-s.MaxAge)
	kept := 0
	for _, snap := range snaps {
		if snap.name == keep {
			kept++
			continue
		}
		expired := s.MaxAge > 0 && snap.taken.Before(cutoff)
		excess := s.MaxPerFile > 0 && kept >= s.MaxPerFile
		if expired || excess {
			if err := os.Remove(filepath.Join(s.Dir, snap.name)); err != nil && !os.IsNotExist(err) {
				return err
			}
			continue
		}
		kept++
	}
	return nil
}

// flatten turns a relative path into a single file name component.
func flatten(rel string) string {
	rel = filepath.ToSlash(filepath.Clean(rel))
	rel = strings.TrimPrefix(rel, "/")
	return strings.ReplaceAll(rel, "/", "__")
}
