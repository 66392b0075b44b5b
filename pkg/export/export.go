// Package export renders task records back into task lines for inspection.
//
// The output is rebuilt from parsed fields only, so anything the record does
// not model, such as recurrence or created dates, is lost. Nothing that
// writes to the vault uses this package.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/harrisonrobin/vaultsync/pkg/markdown"
	"github.com/harrisonrobin/vaultsync/pkg/model"
)

var prioritySymbols = map[model.Priority]string{
	model.PriorityHigh:   markdown.SymbolHigh,
	model.PriorityMedium: markdown.SymbolMedium,
	model.PriorityLow:    markdown.SymbolLow,
}

// Format returns t as a single task line.
func Format(t model.Task) string {
	var b strings.Builder
	if t.Completed {
		b.WriteString("- [x] ")
	} else {
		b.WriteString("- [ ] ")
	}
	b.WriteString(t.Title)

	if sym, ok := prioritySymbols[t.Priority]; ok {
		b.WriteString(" " + sym)
	}
	writeDate(&b, markdown.SymbolStart, t.Start)
	writeDate(&b, markdown.SymbolScheduled, t.Scheduled)
	writeDate(&b, markdown.SymbolDue, t.Due)
	if t.Completed {
		writeDate(&b, markdown.SymbolDone, t.Done)
	}
	for _, tag := range t.SortedTags() {
		b.WriteString(" #" + tag)
	}
	return b.String()
}

func writeDate(b *strings.Builder, symbol string, d *time.Time) {
	if d == nil {
		return
	}
	fmt.Fprintf(b, " %s %s", symbol, model.FormatDate(d))
}

// Write prints tasks grouped under a heading per file, notes indented
// below their task.
func Write(w io.Writer, tasks []model.Task) error {
	file := ""
	for i, t := range tasks {
		if i == 0 || t.Origin.File != file {
			file = t.Origin.File
			if i > 0 {
				if _, err := fmt.Fprintln(w); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, "## %s\n", file); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, Format(t)); err != nil {
			return err
		}
		if t.Notes == "" {
			continue
		}
		for _, line := range strings.Split(t.Notes, "\n") {
			if _, err := fmt.Fprintf(w, "    %s\n", line); err != nil {
				return err
			}
		}
	}
	return nil
}
