// Package trigger starts sync runs on start-up, on an interval and when
// vault files change. All triggers share the engine's guard; a trigger that
// finds a run active is dropped.
package trigger

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/harrisonrobin/vaultsync/pkg/engine"
)

const (
	TriggerStart    = "start"
	TriggerInterval = "interval"
	TriggerWatch    = "watch"
)

type Runner interface {
	Run(ctx context.Context, ro engine.RunOptions) (*engine.Result, error)
}

// ChangeDetector tells whether a file differs from what the last sync saw,
// so writes made by the sync itself do not trigger another run.
type ChangeDetector interface {
	HasFileChanged(rel string) (bool, error)
}

type Options struct {
	// Interval of the timer trigger; zero disables it.
	Interval time.Duration

	// Root enables the watch trigger when set.
	Root        string
	FilePattern string
	Debounce    time.Duration
	Changes     ChangeDetector

	OnStart  bool
	DryRun   bool
	Logger   zerolog.Logger
	OnResult func(*engine.Result, error)
}

type Scheduler struct {
	runner Runner
	opts   Options
	log    zerolog.Logger
}

func New(r Runner, opts Options) *Scheduler {
	if opts.FilePattern == "" {
		opts.FilePattern = "*.md"
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	return &Scheduler{runner: r, opts: opts, log: opts.Logger}
}

// Start blocks, firing runs until ctx is cancelled. Runs execute one at a
// time on the calling goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	var tick <-chan time.Time
	if s.opts.Interval > 0 {
		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	var watcher *fsnotify.Watcher
	if s.opts.Root != "" {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()
		if err := s.watchTree(w, s.opts.Root); err != nil {
			return err
		}
		watcher, events, watchErrs = w, w.Events, w.Errors
	}

	if s.opts.OnStart {
		s.fire(ctx, TriggerStart)
	}

	var debounce *time.Timer
	var debounced <-chan time.Time
	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case <-tick:
			s.fire(ctx, TriggerInterval)

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			rel, relevant := s.relevant(watcher, event)
			if !relevant {
				continue
			}
			pending[rel] = true
			if debounce == nil {
				debounce = time.NewTimer(s.opts.Debounce)
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(s.opts.Debounce)
			}
			debounced = debounce.C

		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			s.log.Warn().Err(err).Msg("file watcher error")

		case <-debounced:
			debounced = nil
			changed := s.changed(pending)
			pending = make(map[string]bool)
			if changed {
				s.fire(ctx, TriggerWatch)
			}
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, trigger string) {
	res, err := s.runner.Run(ctx, engine.RunOptions{Trigger: trigger, DryRun: s.opts.DryRun})
	if errors.Is(err, engine.ErrBusy) {
		s.log.Debug().Str("trigger", trigger).Msg("sync already running, trigger dropped")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("trigger", trigger).Msg("sync failed")
	}
	if s.opts.OnResult != nil {
		s.opts.OnResult(res, err)
	}
}

// watchTree adds root and every non-hidden directory below it.
func (s *Scheduler) watchTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

// relevant filters events down to matching files outside hidden
// directories. New directories are added to the watch as a side effect.
func (s *Scheduler) relevant(w *fsnotify.Watcher, event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return "", false
	}
	rel, err := filepath.Rel(s.opts.Root, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return "", false
		}
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := s.watchTree(w, event.Name); err != nil {
				s.log.Warn().Err(err).Str("dir", rel).Msg("could not watch new directory")
			}
			return rel, true
		}
	}
	if ok, _ := filepath.Match(s.opts.FilePattern, filepath.Base(rel)); !ok {
		return "", false
	}
	return rel, true
}

// changed reports whether any pending file differs from the last scan.
func (s *Scheduler) changed(pending map[string]bool) bool {
	if s.opts.Changes == nil {
		return len(pending) > 0
	}
	for rel := range pending {
		changed, err := s.opts.Changes.HasFileChanged(rel)
		if err != nil || changed {
			return true
		}
	}
	s.log.Debug().Int("files", len(pending)).Msg("watched files unchanged since last sync")
	return false
}
