package engine

import (
	"context"
	"time"

	"github.com/harrisonrobin/vaultsync/pkg/model"
)

// TaskSource is the authoritative text store.
type TaskSource interface {
	// IDVersion tags the ID scheme; stored mappings from another version
	// are discarded.
	IDVersion() int

	ScanTasks(ctx context.Context) ([]model.Task, error)

	// GenerateTaskID returns the content-derived ID of t. The orchestrator
	// treats it as opaque.
	GenerateTaskID(t model.Task) string

	// MarkTaskComplete and MarkTaskIncomplete edit t's line surgically and
	// return the number of lines inserted into the file.
	MarkTaskComplete(t model.Task, on time.Time) (int, error)
	MarkTaskIncomplete(t model.Task) (int, error)

	UpdateTaskMetadata(t model.Task, ch model.MetadataChanges) error
	AppendNewTask(file string, t model.Task) (model.Origin, error)
	HasFileChanged(file string) (bool, error)
}

// TaskDestination is the structured task store kept in sync.
type TaskDestination interface {
	Name() string

	// RequestAccess fails when the destination was never authorized.
	RequestAccess(ctx context.Context) error

	// FetchAllTasks returns every task with a destination origin and List set.
	FetchAllTasks(ctx context.Context) ([]model.Task, error)

	AvailableLists(ctx context.Context) ([]string, error)

	// CreateTask returns the new destination ID.
	CreateTask(ctx context.Context, t model.Task, list string) (string, error)
	UpdateTask(ctx context.Context, id string, t model.Task) error
	MoveTask(ctx context.Context, id, list string) error
	DeleteTask(ctx context.Context, id string) error

	// Refresh drops any cached view of the destination.
	Refresh(ctx context.Context) error
}

// Recorder keeps run results, e.g. the bounded sync log.
type Recorder interface {
	Record(r *Result) error
}
