// Package markdown tokenizes task lines written in the inline-metadata
// syntax and applies minimal, span-based transformations to them. It never
// rebuilds a line from parsed fields.
package markdown

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/harrisonrobin/vaultsync/pkg/model"
)

// Kind identifies a metadata token.
type Kind int

const (
	KindPriority Kind = iota + 1
	KindDue
	KindStart
	KindScheduled
	KindDone
	KindCreated
	KindRecurrence
	KindTag
)

func (k Kind) String() string {
	switch k {
	case KindPriority:
		return "priority"
	case KindDue:
		return "due"
	case KindStart:
		return "start"
	case KindScheduled:
		return "scheduled"
	case KindDone:
		return "done"
	case KindCreated:
		return "created"
	case KindRecurrence:
		return "recurrence"
	case KindTag:
		return "tag"
	}
	return "unknown"
}

const (
	SymbolHigh      = "⏫"
	SymbolMedium    = "🔼"
	SymbolLow       = "🔽"
	SymbolDue       = "📅"
	SymbolStart     = "🛫"
	SymbolScheduled = "⏳"
	SymbolDone      = "✅"
	SymbolCreated   = "➕"
	SymbolRecurring = "🔁"
)

var (
	taskRe  = regexp.MustCompile(`^([ \t]*)([-*+]|\d+[.)])[ \t]+\[([ xX])\](?:[ \t]+|$)`)
	dateRe  = regexp.MustCompile(`(📅|📆|🗓|🛫|⏳|⌛|✅|➕)\x{FE0F}?[ \t]*(\d{4}-\d{2}-\d{2})`)
	prioRe  = regexp.MustCompile(`(⏫|🔼|🔽)\x{FE0F}?`)
	recurRe = regexp.MustCompile(`(🔁\x{FE0F}?)[ \t]*([^📅📆🗓🛫⏳⌛✅➕⏫🔼🔽🔁#]*)`)
	tagRe   = regexp.MustCompile(`(?:^|[ \t])(#[\p{L}\p{N}_/\-]+)`)
	digits  = regexp.MustCompile(`^#\d+$`)
)

var dateKinds = map[string]Kind{
	"📅": KindDue,
	"📆": KindDue,
	"🗓": KindDue,
	"🛫": KindStart,
	"⏳": KindScheduled,
	"⌛": KindScheduled,
	"✅": KindDone,
	"➕": KindCreated,
}

// Token is one recognized metadata token with its byte span in the line.
type Token struct {
	Kind       Kind
	Start      int
	End        int
	ValueStart int
	Value      string
}

// Line is a parsed task line. Offsets refer to Text.
type Line struct {
	Text      string
	Indent    string
	Marker    int
	Completed bool
	BodyStart int
	Tokens    []Token
}

// IsTask reports whether text starts with a checkbox task marker.
func IsTask(text string) bool {
	return taskRe.MatchString(text)
}

// Parse tokenizes a task line. It returns false when text is not a task.
func Parse(text string) (*Line, bool) {
	m := taskRe.FindStringSubmatchIndex(text)
	if m == nil {
		return nil, false
	}
	l := &Line{
		Text:      text,
		Indent:    text[m[2]:m[3]],
		Marker:    m[6],
		Completed: text[m[6]] != ' ',
		BodyStart: m[1],
	}
	l.Tokens = tokenize(text[l.BodyStart:], l.BodyStart)
	return l, true
}

func tokenize(body string, offset int) []Token {
	var tokens []Token
	for _, m := range dateRe.FindAllStringSubmatchIndex(body, -1) {
		tokens = append(tokens, Token{
			Kind:       dateKinds[body[m[2]:m[3]]],
			Start:      offset + m[0],
			End:        offset + m[1],
			ValueStart: offset + m[4],
			Value:      body[m[4]:m[5]],
		})
	}
	for _, m := range prioRe.FindAllStringSubmatchIndex(body, -1) {
		tokens = append(tokens, Token{
			Kind:       KindPriority,
			Start:      offset + m[0],
			End:        offset + m[1],
			ValueStart: offset + m[2],
			Value:      body[m[2]:m[3]],
		})
	}
	for _, m := range recurRe.FindAllStringSubmatchIndex(body, -1) {
		rule := strings.TrimRight(body[m[4]:m[5]], " \t")
		end := m[3]
		if rule != "" {
			end = m[4] + len(rule)
		}
		tokens = append(tokens, Token{
			Kind:       KindRecurrence,
			Start:      offset + m[0],
			End:        offset + end,
			ValueStart: offset + m[4],
			Value:      rule,
		})
	}
	for _, m := range tagRe.FindAllStringSubmatchIndex(body, -1) {
		tag := body[m[2]:m[3]]
		if digits.MatchString(tag) {
			continue
		}
		tokens = append(tokens, Token{
			Kind:       KindTag,
			Start:      offset + m[2],
			End:        offset + m[3],
			ValueStart: offset + m[2] + 1,
			Value:      tag[1:],
		})
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].Start < tokens[j].Start })
	return tokens
}

// Find returns the first token of kind k.
func (l *Line) Find(k Kind) (Token, bool) {
	for _, tok := range l.Tokens {
		if tok.Kind == k {
			return tok, true
		}
	}
	return Token{}, false
}

// Title is the body with every recognized token removed and whitespace
// collapsed.
func (l *Line) Title() string {
	body := l.Text
	for i := len(l.Tokens) - 1; i >= 0; i-- {
		tok := l.Tokens[i]
		body = body[:tok.Start] + " " + body[tok.End:]
	}
	return strings.Join(strings.Fields(body[l.BodyStart:]), " ")
}

func (l *Line) Priority() model.Priority {
	tok, ok := l.Find(KindPriority)
	if !ok {
		return model.PriorityNone
	}
	switch tok.Value {
	case SymbolHigh:
		return model.PriorityHigh
	case SymbolMedium:
		return model.PriorityMedium
	case SymbolLow:
		return model.PriorityLow
	}
	return model.PriorityNone
}

// Date returns the date carried by the first token of kind k.
func (l *Line) Date(k Kind) *time.Time {
	tok, ok := l.Find(k)
	if !ok {
		return nil
	}
	d, err := model.ParseDate(tok.Value)
	if err != nil {
		return nil
	}
	return &d
}

func (l *Line) Tags() []string {
	var tags []string
	for _, tok := range l.Tokens {
		if tok.Kind == KindTag {
			tags = append(tags, tok.Value)
		}
	}
	return tags
}

// Recurrence returns the raw recurrence rule. It is never interpreted.
func (l *Line) Recurrence() (string, bool) {
	tok, ok := l.Find(KindRecurrence)
	return tok.Value, ok
}

// Task converts the line into a task record without an origin.
func (l *Line) Task() model.Task {
	return model.Task{
		Title:     l.Title(),
		Completed: l.Completed,
		Done:      l.Date(KindDone),
		Due:       l.Date(KindDue),
		Start:     l.Date(KindStart),
		Scheduled: l.Date(KindScheduled),
		Priority:  l.Priority(),
		Tags:      l.Tags(),
	}
}
