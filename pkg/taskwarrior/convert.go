package taskwarrior

import (
	"strings"
	"time"

	"github.com/harrisonrobin/vaultsync/pkg/model"
)

var priorities = map[model.Priority]string{
	model.PriorityHigh:   "H",
	model.PriorityMedium: "M",
	model.PriorityLow:    "L",
}

// FromTaskwarrior maps a Taskwarrior task. Wait stands in for the start date.
func FromTaskwarrior(tw Task) model.Task {
	t := model.Task{
		Title:     tw.Description,
		Completed: tw.Status == COMPLETED,
		Due:       date(tw.Due),
		Start:     date(tw.Wait),
		Scheduled: date(tw.Scheduled),
		Tags:      tw.Tags,
		List:      tw.Project,
		Origin:    model.DestinationOrigin(tw.UUID),
	}
	if t.Completed {
		t.Done = date(tw.End)
	}
	for p, code := range priorities {
		if tw.Priority == code {
			t.Priority = p
		}
	}
	var notes []string
	for _, a := range tw.Annotations {
		notes = append(notes, a.Description)
	}
	t.Notes = strings.Join(notes, "\n")
	return t
}

// apply lays the fields of t over tw. Annotations are replaced only when the
// notes differ.
func apply(tw *Task, t model.Task, now time.Time) {
	tw.Description = t.Title
	tw.Due = stamp(t.Due)
	tw.Scheduled = stamp(t.Scheduled)
	tw.Wait = stamp(t.Start)
	tw.Priority = priorities[t.Priority]
	tw.Tags = t.SortedTags()

	switch {
	case t.Completed:
		tw.Status = COMPLETED
		if t.Done != nil {
			tw.End = stamp(t.Done)
		} else if tw.End == nil {
			tw.End = NewTime(now)
		}
	case tw.Wait != nil && tw.Wait.After(now):
		tw.Status = WAITING
		tw.End = nil
	default:
		tw.Status = PENDING
		tw.End = nil
	}

	if FromTaskwarrior(*tw).Notes == t.Notes {
		return
	}
	tw.Annotations = nil
	if t.Notes == "" {
		return
	}
	for _, line := range strings.Split(t.Notes, "\n") {
		tw.Annotations = append(tw.Annotations, Annotation{Entry: NewTime(now), Description: line})
	}
}

func date(ct *CustomTime) *time.Time {
	if ct == nil || ct.IsZero() {
		return nil
	}
	return model.DatePtr(ct.Time)
}

func stamp(t *time.Time) *CustomTime {
	if t == nil {
		return nil
	}
	return NewTime(model.Day(*t))
}
