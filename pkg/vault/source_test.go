package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/vaultsync/pkg/model"
)

func writeVault(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".obsidian"), 0o755))
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestScanTasks(t *testing.T) {
	root := writeVault(t, map[string]string{
		"todo.md":             "# Todo\n- [ ] Buy milk 📅 2024-01-20 #errand\n- not a task\n- [x] Call mum ✅ 2024-01-02\n",
		"Projects/work.md":    "* [ ] Ship release ⏫\n",
		"Archive/old.md":      "- [ ] Archived task\n",
		"notes.txt":           "- [ ] Not markdown\n",
		".obsidian/plugin.md": "- [ ] Hidden\n",
		"Templates/daily.md":  "- [ ] Template task\n",
	})
	src := New(Options{Root: root, Exclude: []string{"Archive", "Templates/*"}})

	tasks, err := src.ScanTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	byTitle := map[string]model.Task{}
	for _, task := range tasks {
		byTitle[task.Title] = task
	}

	milk := byTitle["Buy milk"]
	assert.Equal(t, model.SourceOrigin("todo.md", 2, "- [ ] Buy milk 📅 2024-01-20 #errand"), milk.Origin)
	assert.Equal(t, "2024-01-20", model.FormatDate(milk.Due))
	assert.Equal(t, []string{"errand"}, milk.Tags)

	mum := byTitle["Call mum"]
	assert.True(t, mum.Completed)
	assert.Equal(t, 4, mum.Origin.Line)

	release := byTitle["Ship release"]
	assert.Equal(t, "Projects/work.md", release.Origin.File)
	assert.Equal(t, model.PriorityHigh, release.Priority)
}

func TestScanCollectsNotes(t *testing.T) {
	root := writeVault(t, map[string]string{
		"todo.md": "- [ ] Plan trip\n  book flights early\n  check passport\n  - [ ] Nested task\n    nested note\nUnrelated line\n",
	})
	src := New(Options{Root: root})

	tasks, err := src.ScanTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "book flights early\ncheck passport", tasks[0].Notes)
	assert.Equal(t, "nested note", tasks[1].Notes)
}

func TestScanTwiceIsStable(t *testing.T) {
	root := writeVault(t, map[string]string{
		"todo.md": "- [ ] Buy milk 📅 2024-01-20 #errand\n- [ ] Water plants 🔁 every week\n",
	})
	src := New(Options{Root: root})

	first, err := src.ScanTasks(context.Background())
	require.NoError(t, err)
	second, err := src.ScanTasks(context.Background())
	require.NoError(t, err)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, GenerateTaskID(first[i]), GenerateTaskID(second[i]))
		assert.Equal(t, first[i].ContentHash(), second[i].ContentHash())
	}
}

func TestHasFileChanged(t *testing.T) {
	root := writeVault(t, map[string]string{"todo.md": "- [ ] Buy milk\n"})
	src := New(Options{Root: root})

	changed, err := src.HasFileChanged("todo.md")
	require.NoError(t, err)
	assert.True(t, changed, "never scanned")

	_, err = src.ScanTasks(context.Background())
	require.NoError(t, err)
	changed, err = src.HasFileChanged("todo.md")
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, os.WriteFile(filepath.Join(root, "todo.md"), []byte("- [ ] Buy bread\n"), 0o644))
	changed, err = src.HasFileChanged("todo.md")
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestGenerateTaskIDDeterministic(t *testing.T) {
	due := model.DatePtr(time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC))
	a := model.Task{Title: "Buy milk", Due: due, Tags: []string{"errand", "home"}, Origin: model.SourceOrigin("todo.md", 2, "x")}
	b := model.Task{Title: "Buy milk", Due: model.DatePtr(*due), Tags: []string{"home", "errand"}, Origin: model.SourceOrigin("todo.md", 40, "y")}
	b.Completed = true

	assert.Equal(t, GenerateTaskID(a), GenerateTaskID(b), "position, line text and completion do not matter")
}

func TestGenerateTaskIDSensitivity(t *testing.T) {
	day := model.DatePtr(time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC))
	base := model.Task{Title: "Buy milk", Tags: []string{"errand"}, Origin: model.SourceOrigin("todo.md", 1, "")}
	id := GenerateTaskID(base)

	mutations := map[string]func(*model.Task){
		"file":      func(t *model.Task) { t.Origin.File = "other.md" },
		"title":     func(t *model.Task) { t.Title = "Buy bread" },
		"due":       func(t *model.Task) { t.Due = day },
		"start":     func(t *model.Task) { t.Start = day },
		"scheduled": func(t *model.Task) { t.Scheduled = day },
		"tags":      func(t *model.Task) { t.Tags = []string{"errand", "shop"} },
		"priority":  func(t *model.Task) { t.Priority = model.PriorityMedium },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			changed := base
			mutate(&changed)
			assert.NotEqual(t, id, GenerateTaskID(changed))
		})
	}
}

func TestDescribeTaskID(t *testing.T) {
	task := model.Task{
		Title:    "Buy milk",
		Due:      model.DatePtr(time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)),
		Tags:     []string{"Errand"},
		Priority: model.PriorityHigh,
		Origin:   model.SourceOrigin("todo.md", 1, ""),
	}
	fields, err := DescribeTaskID(GenerateTaskID(task))
	require.NoError(t, err)
	assert.Equal(t, IDFields{
		File:     "todo.md",
		Title:    "Buy milk",
		Due:      "2024-01-20",
		Tags:     []string{"errand"},
		Priority: model.PriorityHigh,
	}, fields)

	_, err = DescribeTaskID("!!not-base64")
	assert.Error(t, err)
}
