package model

import "time"

type changeState uint8

const (
	unchanged changeState = iota
	cleared
	set
)

// Change is a tri-state field update: leave the field alone, remove it, or
// set it to a value.
type Change[T any] struct {
	state changeState
	value T
}

// Unchanged leaves the field as it is.
func Unchanged[T any]() Change[T] { return Change[T]{} }

// Cleared removes the field.
func Cleared[T any]() Change[T] { return Change[T]{state: cleared} }

// SetTo sets the field to v.
func SetTo[T any](v T) Change[T] { return Change[T]{state: set, value: v} }

func (c Change[T]) IsUnchanged() bool { return c.state == unchanged }
func (c Change[T]) IsCleared() bool   { return c.state == cleared }

// Value returns the new value and true when the change sets one.
func (c Change[T]) Value() (T, bool) {
	return c.value, c.state == set
}

// MetadataChanges is one atomic multi-field edit of a source task.
type MetadataChanges struct {
	Due       Change[time.Time]
	Start     Change[time.Time]
	Scheduled Change[time.Time]
	Priority  Change[Priority]
}

// Empty reports whether no field is touched.
func (m MetadataChanges) Empty() bool {
	return m.Due.IsUnchanged() && m.Start.IsUnchanged() &&
		m.Scheduled.IsUnchanged() && m.Priority.IsUnchanged()
}
