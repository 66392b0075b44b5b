package engine

import (
	"time"

	"github.com/google/uuid"
)

type ActionKind string

const (
	ActionCreate     ActionKind = "create"
	ActionUpdate     ActionKind = "update"
	ActionMove       ActionKind = "move"
	ActionDelete     ActionKind = "delete"
	ActionComplete   ActionKind = "complete"
	ActionUncomplete ActionKind = "uncomplete"
	ActionUnlink     ActionKind = "unlink"
	ActionSkip       ActionKind = "skip"
	ActionFail       ActionKind = "fail"
)

// Action is one decision taken for one task.
type Action struct {
	Kind          ActionKind `json:"kind"`
	SourceID      string     `json:"source_id,omitempty"`
	DestinationID string     `json:"destination_id,omitempty"`
	Title         string     `json:"title,omitempty"`
	File          string     `json:"file,omitempty"`
	Line          int        `json:"line,omitempty"`
	List          string     `json:"list,omitempty"`
	Op            ActionKind `json:"op,omitempty"` // attempted operation of skip/fail
	Err           string     `json:"error,omitempty"`
}

// Result summarizes one run.
type Result struct {
	ID         string        `json:"id"`
	Trigger    string        `json:"trigger,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	DryRun     bool          `json:"dry_run"`
	Created    int           `json:"created"`
	Updated    int           `json:"updated"`
	Moved      int           `json:"moved"`
	Deleted    int           `json:"deleted"`
	Writebacks int           `json:"writebacks"`
	Unlinked   int           `json:"unlinked"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Actions    []Action      `json:"actions"`
	Error      string        `json:"error,omitempty"`
}

func newResult(trigger string, started time.Time, dryRun bool) *Result {
	return &Result{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: started,
		DryRun:    dryRun,
		Actions:   []Action{},
	}
}

func (r *Result) add(a Action) {
	switch a.Kind {
	case ActionCreate:
		r.Created++
	case ActionUpdate:
		r.Updated++
	case ActionMove:
		r.Moved++
	case ActionDelete:
		r.Deleted++
	case ActionComplete, ActionUncomplete:
		r.Writebacks++
	case ActionUnlink:
		r.Unlinked++
	case ActionSkip:
		r.Skipped++
	case ActionFail:
		r.Failed++
	}
	r.Actions = append(r.Actions, a)
}

func (r *Result) finish(end time.Time, err error) {
	r.Duration = end.Sub(r.StartedAt)
	if err != nil {
		r.Error = err.Error()
	}
}

// Changes counts the actions that change either store.
func (r *Result) Changes() int {
	return r.Created + r.Updated + r.Moved + r.Deleted + r.Writebacks
}

// Problems returns the skipped and failed actions.
func (r *Result) Problems() []Action {
	var out []Action
	for _, a := range r.Actions {
		if a.Kind == ActionSkip || a.Kind == ActionFail {
			out = append(out, a)
		}
	}
	return out
}

// OK reports a run without run-level error or task failures.
func (r *Result) OK() bool {
	return r.Error == "" && r.Failed == 0
}
