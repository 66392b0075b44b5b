package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Priority is the ordered priority of a task. The numeric rank is part of
// the source ID, so values must never be renumbered.
type Priority int

const (
	PriorityNone Priority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return "none"
	}
}

// ParsePriority maps a label ("high", "h", "medium", ...) to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "n":
		return PriorityNone, nil
	case "low", "l":
		return PriorityLow, nil
	case "medium", "med", "m":
		return PriorityMedium, nil
	case "high", "h":
		return PriorityHigh, nil
	}
	return PriorityNone, fmt.Errorf("unknown priority %q", s)
}

type OriginKind int

const (
	OriginSource OriginKind = iota + 1
	OriginDestination
)

// Origin says where a Task was read from. Source origins carry the verbatim
// line captured at scan time; it is what surgical edits verify against.
type Origin struct {
	Kind OriginKind

	// Source origin.
	File string // relative to the vault root, slash separated
	Line int    // 1-based
	Text string // line content without its terminator

	// Destination origin.
	DestinationID string
}

// SourceOrigin builds a source origin descriptor.
func SourceOrigin(file string, line int, text string) Origin {
	return Origin{Kind: OriginSource, File: file, Line: line, Text: text}
}

// DestinationOrigin builds a destination origin descriptor.
func DestinationOrigin(id string) Origin {
	return Origin{Kind: OriginDestination, DestinationID: id}
}

// Task is the unified in-memory task record. It is rebuilt on every scan.
type Task struct {
	Title     string
	Completed bool
	Done      *time.Time
	Due       *time.Time
	Start     *time.Time
	Scheduled *time.Time
	Priority  Priority
	Tags      []string
	Notes     string

	// List is the destination list the task lives in. Only destination
	// records set it.
	List string

	Origin Origin
}

// SortedTags returns the tags lower-cased, without '#', de-duplicated and sorted.
func (t Task) SortedTags() []string {
	seen := make(map[string]bool, len(t.Tags))
	out := make([]string, 0, len(t.Tags))
	for _, tag := range t.Tags {
		tag = NormalizeTag(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// HasTag reports whether the task carries tag (case-insensitive, '#' optional).
func (t Task) HasTag(tag string) bool {
	tag = NormalizeTag(tag)
	for _, candidate := range t.Tags {
		if NormalizeTag(candidate) == tag {
			return true
		}
	}
	return false
}

// NormalizeTag strips a leading '#' and lower-cases.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
}

// ContentHash returns a SHA-256 hex digest over every mutable field. It is
// used for change detection only and is independent of the task's position.
func (t Task) ContentHash() string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0x1f})
	}
	write(t.Title)
	write(FormatDate(t.Due))
	write(FormatDate(t.Start))
	write(FormatDate(t.Scheduled))
	write(FormatDate(t.Done))
	write(fmt.Sprintf("%d", t.Priority))
	write(fmt.Sprintf("%t", t.Completed))
	write(strings.Join(t.SortedTags(), ","))
	write(t.Notes)
	return hex.EncodeToString(h.Sum(nil))
}

// WithCompletion returns a copy of t with its completion state set the way a
// surgical completion edit leaves it.
func (t Task) WithCompletion(completed bool, on time.Time) Task {
	t.Completed = completed
	if completed {
		d := Day(on)
		t.Done = &d
	} else {
		t.Done = nil
	}
	return t
}
