package trigger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/vaultsync/pkg/engine"
)

type countingRunner struct {
	mu       sync.Mutex
	triggers []string
	err      error
}

func (r *countingRunner) Run(_ context.Context, ro engine.RunOptions) (*engine.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers = append(r.triggers, ro.Trigger)
	if r.err != nil {
		return nil, r.err
	}
	return &engine.Result{Trigger: ro.Trigger, DryRun: ro.DryRun}, nil
}

func (r *countingRunner) count(trigger string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.triggers {
		if t == trigger {
			n++
		}
	}
	return n
}

type fixedChanges struct{ changed bool }

func (f fixedChanges) HasFileChanged(string) (bool, error) { return f.changed, nil }

func start(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

func TestStartTrigger(t *testing.T) {
	r := &countingRunner{}
	var results []*engine.Result
	var mu sync.Mutex
	s := New(r, Options{OnStart: true, DryRun: true, OnResult: func(res *engine.Result, err error) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, res)
	}})
	start(t, s)

	assert.Eventually(t, func() bool { return r.count(TriggerStart) == 1 }, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 1)
	assert.True(t, results[0].DryRun)
}

func TestIntervalTrigger(t *testing.T) {
	r := &countingRunner{}
	start(t, New(r, Options{Interval: 10 * time.Millisecond}))
	assert.Eventually(t, func() bool { return r.count(TriggerInterval) >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, r.count(TriggerStart))
}

func TestBusyTriggersAreDropped(t *testing.T) {
	r := &countingRunner{err: engine.ErrBusy}
	reported := 0
	var mu sync.Mutex
	start(t, New(r, Options{Interval: 5 * time.Millisecond, OnResult: func(*engine.Result, error) {
		mu.Lock()
		reported++
		mu.Unlock()
	}}))

	assert.Eventually(t, func() bool { return r.count(TriggerInterval) >= 2 }, 2*time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, reported)
}

func TestLockFailuresAreReported(t *testing.T) {
	r := &countingRunner{err: errors.New("acquire run lock /nowhere/sync.lock: permission denied")}
	var mu sync.Mutex
	var reported []error
	start(t, New(r, Options{OnStart: true, OnResult: func(_ *engine.Result, err error) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	}}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reported) == 1
	}, 2*time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.ErrorContains(t, reported[0], "permission denied")
}

func TestWatchDebouncesWrites(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".obsidian"), 0o755))
	r := &countingRunner{}
	start(t, New(r, Options{Root: root, Debounce: 100 * time.Millisecond}))
	time.Sleep(50 * time.Millisecond)

	path := filepath.Join(root, "todo.md")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("- [ ] Buy milk\n"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "image.png"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".obsidian", "workspace.md"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool { return r.count(TriggerWatch) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, r.count(TriggerWatch))
}

func TestWatchIgnoresUnchangedFiles(t *testing.T) {
	root := t.TempDir()
	r := &countingRunner{}
	start(t, New(r, Options{Root: root, Debounce: 20 * time.Millisecond, Changes: fixedChanges{changed: false}}))
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "todo.md"), []byte("- [ ] Buy milk\n"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, r.count(TriggerWatch))
}

func TestWatchFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	r := &countingRunner{}
	start(t, New(r, Options{Root: root, Debounce: 20 * time.Millisecond}))
	time.Sleep(50 * time.Millisecond)

	dir := filepath.Join(root, "Projects")
	require.NoError(t, os.Mkdir(dir, 0o755))
	assert.Eventually(t, func() bool { return r.count(TriggerWatch) == 1 }, 2*time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "work.md"), []byte("- [ ] Ship\n"), 0o644))
	assert.Eventually(t, func() bool { return r.count(TriggerWatch) == 2 }, 2*time.Second, 10*time.Millisecond)
}
