package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/harrisonrobin/vaultsync/pkg/engine"
)

// Summary is the one-line form of a result.
func Summary(r *engine.Result) string {
	parts := []string{
		fmt.Sprintf("%d created", r.Created),
		fmt.Sprintf("%d updated", r.Updated),
		fmt.Sprintf("%d deleted", r.Deleted),
		fmt.Sprintf("%d written back", r.Writebacks),
	}
	if r.Moved > 0 {
		parts = append(parts, fmt.Sprintf("%d moved", r.Moved))
	}
	if r.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", r.Skipped))
	}
	if r.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", r.Failed))
	}
	s := strings.Join(parts, ", ")
	if r.DryRun {
		s = "[dry run] " + s
	}
	return s
}

// WriteResult prints a header line and, when verbose, every action.
// Problems are always listed.
func WriteResult(w io.Writer, r *engine.Result, verbose bool) {
	icon := RenderPass(IconPass)
	switch {
	case r.Error != "" || r.Failed > 0:
		icon = RenderFail(IconFail)
	case r.Skipped > 0:
		icon = RenderWarn(IconWarn)
	}
	when := r.StartedAt.Local().Format(time.DateTime)
	fmt.Fprintf(w, "%s %s %s\n", icon, Summary(r), RenderMuted(fmt.Sprintf("(%s, %s)", when, r.Duration.Round(time.Millisecond))))
	if r.Error != "" {
		fmt.Fprintf(w, "  %s\n", RenderFail(r.Error))
	}
	for _, a := range r.Actions {
		problem := a.Kind == engine.ActionSkip || a.Kind == engine.ActionFail
		if !verbose && !problem {
			continue
		}
		fmt.Fprintf(w, "  %s\n", Action(a))
	}
}

// Action renders one action line.
func Action(a engine.Action) string {
	var icon string
	switch a.Kind {
	case engine.ActionFail:
		icon = RenderFail(IconFail)
	case engine.ActionSkip:
		icon = RenderWarn(IconSkip)
	default:
		icon = RenderPass(IconPass)
	}

	label := string(a.Kind)
	if a.Op != "" {
		label += " " + string(a.Op)
	}
	line := fmt.Sprintf("%s %-10s %s", icon, RenderAccent(label), a.Title)
	if a.File != "" {
		line += " " + RenderMuted(fmt.Sprintf("%s:%d", a.File, a.Line))
	}
	if a.List != "" {
		line += " " + RenderMuted("-> "+a.List)
	}
	if a.Err != "" {
		line += ": " + a.Err
	}
	return line
}
