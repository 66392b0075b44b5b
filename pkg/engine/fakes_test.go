package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/vaultsync/pkg/model"
	"github.com/harrisonrobin/vaultsync/pkg/vault"
)

var runDay = time.Date(2024, 1, 21, 9, 30, 0, 0, time.UTC)

// memoryDestination keeps tasks in a map and counts mutating calls.
type memoryDestination struct {
	mu        sync.Mutex
	tasks     map[string]model.Task
	lists     []string
	seq       int
	mutations int

	accessErr error
	createErr error
	updateErr error
}

func newMemoryDestination(lists ...string) *memoryDestination {
	return &memoryDestination{tasks: make(map[string]model.Task), lists: lists}
}

func (d *memoryDestination) Name() string { return "memory" }

func (d *memoryDestination) RequestAccess(context.Context) error { return d.accessErr }

func (d *memoryDestination) Refresh(context.Context) error { return nil }

func (d *memoryDestination) FetchAllTasks(context.Context) ([]model.Task, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]model.Task, 0, len(d.tasks))
	for _, t := range d.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Origin.DestinationID < out[j].Origin.DestinationID })
	return out, nil
}

func (d *memoryDestination) AvailableLists(context.Context) ([]string, error) {
	return d.lists, nil
}

func (d *memoryDestination) CreateTask(_ context.Context, t model.Task, list string) (string, error) {
	if d.createErr != nil {
		return "", d.createErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	d.mutations++
	id := fmt.Sprintf("dest-%d", d.seq)
	t.List = list
	t.Origin = model.DestinationOrigin(id)
	d.tasks[id] = t
	return id, nil
}

func (d *memoryDestination) UpdateTask(_ context.Context, id string, t model.Task) error {
	if d.updateErr != nil {
		return d.updateErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	cur, ok := d.tasks[id]
	if !ok {
		return fmt.Errorf("task %s not found", id)
	}
	d.mutations++
	t.List = cur.List
	t.Origin = cur.Origin
	d.tasks[id] = t
	return nil
}

func (d *memoryDestination) MoveTask(_ context.Context, id, list string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur, ok := d.tasks[id]
	if !ok {
		return fmt.Errorf("task %s not found", id)
	}
	d.mutations++
	cur.List = list
	d.tasks[id] = cur
	return nil
}

func (d *memoryDestination) DeleteTask(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mutations++
	delete(d.tasks, id)
	return nil
}

func (d *memoryDestination) only(t *testing.T) model.Task {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.Len(t, d.tasks, 1)
	for _, task := range d.tasks {
		return task
	}
	return model.Task{}
}

func (d *memoryDestination) setCompleted(id string, completed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur := d.tasks[id]
	cur.Completed = completed
	d.tasks[id] = cur
}

type memoryRecorder struct{ results []*Result }

func (r *memoryRecorder) Record(res *Result) error {
	r.results = append(r.results, res)
	return nil
}

type fixture struct {
	root     string
	state    string
	src      *vault.Source
	dst      *memoryDestination
	recorder *memoryRecorder
	engine   *Engine
}

func newFixture(t *testing.T, files map[string]string, configure func(*Options)) *fixture {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".obsidian"), 0o755))
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	f := &fixture{
		root:     root,
		state:    filepath.Join(t.TempDir(), "state.json"),
		src:      vault.New(vault.Options{Root: root, Now: func() time.Time { return runDay }}),
		dst:      newMemoryDestination("Tasks", "Errands"),
		recorder: &memoryRecorder{},
	}
	opts := Options{
		StoreRoot:   root,
		SentinelDir: ".obsidian",
		StatePath:   f.state,
		Router:      Router{TagLists: map[string]string{"errand": "Errands"}, DefaultList: "Tasks"},
		Recorder:    f.recorder,
		Now:         func() time.Time { return runDay },
	}
	if configure != nil {
		configure(&opts)
	}
	f.engine = New(f.src, f.dst, opts)
	return f
}

func (f *fixture) run(t *testing.T) *Result {
	t.Helper()
	res, err := f.engine.Run(context.Background(), RunOptions{Trigger: "test"})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func (f *fixture) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.root, rel))
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.root, rel), []byte(content), 0o644))
}
