package markdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/vaultsync/pkg/model"
)

func TestParseTaskLine(t *testing.T) {
	l, ok := Parse("- [ ] Buy milk ⏫ 📅 2024-01-20 🛫 2024-01-18 ⏳ 2024-01-19 #errand #home/kitchen")
	require.True(t, ok)

	assert.False(t, l.Completed)
	assert.Equal(t, "Buy milk", l.Title())
	assert.Equal(t, model.PriorityHigh, l.Priority())
	assert.Equal(t, "2024-01-20", model.FormatDate(l.Date(KindDue)))
	assert.Equal(t, "2024-01-18", model.FormatDate(l.Date(KindStart)))
	assert.Equal(t, "2024-01-19", model.FormatDate(l.Date(KindScheduled)))
	assert.Equal(t, []string{"errand", "home/kitchen"}, l.Tags())
}

func TestParseCompletedAndIndented(t *testing.T) {
	l, ok := Parse("    * [X] Call mum ✅ 2024-01-02")
	require.True(t, ok)

	assert.True(t, l.Completed)
	assert.Equal(t, "    ", l.Indent)
	assert.Equal(t, "Call mum", l.Title())
	assert.Equal(t, "2024-01-02", model.FormatDate(l.Date(KindDone)))
}

func TestParseRejectsNonTasks(t *testing.T) {
	for _, text := range []string{
		"Buy milk",
		"- Buy milk",
		"-[ ] Buy milk",
		"- [/] In progress",
		"# Heading",
		"",
	} {
		_, ok := Parse(text)
		assert.False(t, ok, text)
	}
	assert.True(t, IsTask("1. [ ] Numbered"))
}

func TestParseRecurrenceAndUnknownTokens(t *testing.T) {
	l, ok := Parse("- [ ] Water plants 🔁 every week 📅 2024-01-20 ➕ 2024-01-01 #garden")
	require.True(t, ok)

	rule, ok := l.Recurrence()
	require.True(t, ok)
	assert.Equal(t, "every week", rule)
	assert.Equal(t, "Water plants", l.Title())
	assert.Equal(t, []string{"garden"}, l.Tags())
}

func TestParseIgnoresNumericHashes(t *testing.T) {
	l, ok := Parse("- [ ] Review PR #123 #work")
	require.True(t, ok)
	assert.Equal(t, []string{"work"}, l.Tags())
	assert.Equal(t, "Review PR #123", l.Title())
}

func TestParseVariationSelector(t *testing.T) {
	l, ok := Parse("- [ ] Pay rent 🗓️ 2024-02-01")
	require.True(t, ok)
	assert.Equal(t, "2024-02-01", model.FormatDate(l.Date(KindDue)))
	assert.Equal(t, "Pay rent", l.Title())
}

func TestTask(t *testing.T) {
	l, ok := Parse("- [x] Ship release 🔽 ✅ 2024-03-01 #work")
	require.True(t, ok)

	task := l.Task()
	assert.Equal(t, "Ship release", task.Title)
	assert.True(t, task.Completed)
	assert.Equal(t, model.PriorityLow, task.Priority)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *task.Done)
	assert.Equal(t, []string{"work"}, task.Tags)
}
