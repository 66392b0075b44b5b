package markdown

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/vaultsync/pkg/model"
)

// ErrNotTask is returned when a transform is applied to a non-task line.
var ErrNotTask = errors.New("not a task line")

func parseTask(text string) (*Line, error) {
	l, ok := Parse(text)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotTask, text)
	}
	return l, nil
}

// MarkComplete closes the checkbox and adds a done date token. A line that is
// already complete is returned unchanged.
func MarkComplete(text string, on time.Time) (string, error) {
	l, err := parseTask(text)
	if err != nil {
		return "", err
	}
	if l.Completed {
		return text, nil
	}
	text = text[:l.Marker] + "x" + text[l.Marker+1:]
	return setDate(text, KindDone, on)
}

// MarkIncomplete opens the checkbox and removes the done date token.
func MarkIncomplete(text string) (string, error) {
	l, err := parseTask(text)
	if err != nil {
		return "", err
	}
	if !l.Completed {
		return text, nil
	}
	text = text[:l.Marker] + " " + text[l.Marker+1:]
	return remove(text, KindDone)
}

// Apply performs every non-unchanged field of ch on text.
func Apply(text string, ch model.MetadataChanges) (string, error) {
	if _, err := parseTask(text); err != nil {
		return "", err
	}
	var err error
	dates := []struct {
		kind   Kind
		change model.Change[time.Time]
	}{
		{KindDue, ch.Due},
		{KindStart, ch.Start},
		{KindScheduled, ch.Scheduled},
	}
	for _, d := range dates {
		switch v, ok := d.change.Value(); {
		case ok:
			text, err = setDate(text, d.kind, v)
		case d.change.IsCleared():
			text, err = remove(text, d.kind)
		}
		if err != nil {
			return "", err
		}
	}
	switch p, ok := ch.Priority.Value(); {
	case ok && p != model.PriorityNone:
		text, err = setPriority(text, p)
	case ok, ch.Priority.IsCleared():
		text, err = remove(text, KindPriority)
	}
	return text, err
}

func setDate(text string, k Kind, d time.Time) (string, error) {
	l, err := parseTask(text)
	if err != nil {
		return "", err
	}
	value := d.Format(model.DateLayout)
	if tok, ok := l.Find(k); ok {
		return text[:tok.ValueStart] + value + text[tok.End:], nil
	}
	return insert(l, dateSymbol(k)+" "+value), nil
}

func setPriority(text string, p model.Priority) (string, error) {
	l, err := parseTask(text)
	if err != nil {
		return "", err
	}
	symbol := prioritySymbol(p)
	if tok, ok := l.Find(KindPriority); ok {
		return text[:tok.Start] + symbol + text[tok.End:], nil
	}
	return insert(l, symbol), nil
}

func remove(text string, k Kind) (string, error) {
	l, err := parseTask(text)
	if err != nil {
		return "", err
	}
	tok, ok := l.Find(k)
	if !ok {
		return text, nil
	}
	start, end := tok.Start, tok.End
	if start > l.BodyStart && isBlank(text[start-1]) {
		start--
	} else if end < len(text) && isBlank(text[end]) {
		end++
	}
	return text[:start] + text[end:], nil
}

// insert places token after the last metadata token, before a trailing run
// of tags, or at the end of the content, in that order of preference.
func insert(l *Line, token string) string {
	p := l.insertPoint()
	return l.Text[:p] + " " + token + l.Text[p:]
}

func (l *Line) insertPoint() int {
	last := -1
	for _, tok := range l.Tokens {
		if tok.Kind != KindTag && tok.End > last {
			last = tok.End
		}
	}
	if last >= 0 {
		return last
	}

	end := len(strings.TrimRight(l.Text, " \t"))
	p := end
	for i := len(l.Tokens) - 1; i >= 0; i-- {
		tok := l.Tokens[i]
		if strings.TrimSpace(l.Text[tok.End:p]) != "" {
			break
		}
		p = tok.Start
	}
	if p < end {
		if trimmed := len(strings.TrimRight(l.Text[:p], " \t")); trimmed > l.BodyStart {
			return trimmed
		}
	}
	return end
}

func dateSymbol(k Kind) string {
	switch k {
	case KindDue:
		return SymbolDue
	case KindStart:
		return SymbolStart
	case KindScheduled:
		return SymbolScheduled
	case KindDone:
		return SymbolDone
	case KindCreated:
		return SymbolCreated
	}
	return ""
}

func prioritySymbol(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return SymbolHigh
	case model.PriorityMedium:
		return SymbolMedium
	case model.PriorityLow:
		return SymbolLow
	}
	return ""
}

func isBlank(b byte) bool {
	return b == ' ' || b == '\t'
}
