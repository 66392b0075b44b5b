package google

import (
	"strings"
	"time"

	"google.golang.org/api/tasks/v1"

	"github.com/harrisonrobin/vaultsync/pkg/model"
)

const (
	statusNeedsAction = "needsAction"
	statusCompleted   = "completed"
)

// ToGoogle converts a task for insert or patch. The Tasks API has a due
// date but no start, scheduled, priority or tags, so those go into a
// trailing line of the notes. Fields the task leaves empty are listed in
// NullFields so a patch clears them.
func ToGoogle(t model.Task) *tasks.Task {
	gt := &tasks.Task{
		Title:  t.Title,
		Notes:  notes(t),
		Status: statusNeedsAction,
	}
	if t.Due != nil {
		gt.Due = model.Day(*t.Due).Format(time.RFC3339)
	} else {
		gt.NullFields = append(gt.NullFields, "Due")
	}
	if t.Completed {
		// Without a done date the API stamps the completion time itself.
		gt.Status = statusCompleted
		if t.Done != nil {
			gt.Completed = strPtr(model.Day(*t.Done).Format(time.RFC3339))
		}
	} else {
		gt.NullFields = append(gt.NullFields, "Completed")
	}
	if gt.Notes == "" {
		gt.NullFields = append(gt.NullFields, "Notes")
	}
	return gt
}

// FromGoogle converts an API task that lives in list.
func FromGoogle(gt *tasks.Task, list string) model.Task {
	t := model.Task{
		Title:     gt.Title,
		Notes:     gt.Notes,
		Completed: gt.Status == statusCompleted,
		List:      list,
		Origin:    model.DestinationOrigin(gt.Id),
	}
	if d, ok := parseTime(gt.Due); ok {
		t.Due = &d
	}
	if gt.Completed != nil {
		if d, ok := parseTime(*gt.Completed); ok {
			t.Done = &d
		}
	}
	return t
}

func notes(t model.Task) string {
	var meta []string
	if t.Start != nil {
		meta = append(meta, "🛫 "+model.FormatDate(t.Start))
	}
	if t.Scheduled != nil {
		meta = append(meta, "⏳ "+model.FormatDate(t.Scheduled))
	}
	if t.Priority != model.PriorityNone {
		meta = append(meta, "priority: "+t.Priority.String())
	}
	for _, tag := range t.SortedTags() {
		meta = append(meta, "#"+tag)
	}

	notes := strings.TrimSpace(t.Notes)
	if len(meta) == 0 {
		return notes
	}
	if notes == "" {
		return strings.Join(meta, " ")
	}
	return notes + "\n\n" + strings.Join(meta, " ")
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return model.Day(t), true
}

func strPtr(s string) *string { return &s }
