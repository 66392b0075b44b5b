package google

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/tasks/v1"

	"github.com/harrisonrobin/vaultsync/pkg/model"
)

func TestToGoogle(t *testing.T) {
	due := time.Date(2024, 1, 20, 15, 0, 0, 0, time.UTC)
	start := time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC)
	done := time.Date(2024, 1, 21, 0, 0, 0, 0, time.UTC)

	gt := ToGoogle(model.Task{
		Title:    "Buy milk",
		Due:      &due,
		Start:    &start,
		Priority: model.PriorityHigh,
		Tags:     []string{"errand", "Home"},
		Notes:    "two litres",
	})
	assert.Equal(t, "Buy milk", gt.Title)
	assert.Equal(t, "2024-01-20T00:00:00Z", gt.Due)
	assert.Equal(t, statusNeedsAction, gt.Status)
	assert.Equal(t, "two litres\n\n🛫 2024-01-18 priority: high #errand #home", gt.Notes)
	assert.Equal(t, []string{"Completed"}, gt.NullFields)

	gt = ToGoogle(model.Task{Title: "Done", Completed: true, Done: &done})
	assert.Equal(t, statusCompleted, gt.Status)
	assert.Equal(t, "2024-01-21T00:00:00Z", *gt.Completed)
	assert.ElementsMatch(t, []string{"Due", "Notes"}, gt.NullFields)
}

func TestFromGoogle(t *testing.T) {
	task := FromGoogle(&tasks.Task{
		Id:     "abc",
		Title:  "Call mum",
		Status: statusNeedsAction,
		Due:    "bogus",
		Notes:  "n",
	}, "Tasks")
	assert.Equal(t, model.DestinationOrigin("abc"), task.Origin)
	assert.Equal(t, "Tasks", task.List)
	assert.Nil(t, task.Due)
	assert.False(t, task.Completed)
	assert.Equal(t, "n", task.Notes)
}
