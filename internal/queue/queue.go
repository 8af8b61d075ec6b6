package queue

import "context"

// Queue is the job list the orchestrator drains. Implementations keep
// insertion order and never reorder on removal.
type Queue interface {
	// Put inserts a pending job and returns it with its assigned ID.
	Put(ctx context.Context, job NewJob) (*Job, error)
	// Next returns the oldest pending job, or nil when none remain.
	Next(ctx context.Context) (*Job, error)
	// Get returns the job with id, or nil when it does not exist.
	Get(ctx context.Context, id int64) (*Job, error)
	// List returns jobs in drain order, optionally filtered by status.
	List(ctx context.Context, statuses ...Status) ([]*Job, error)
	// Remove deletes a job. Removing a missing id is not an error.
	Remove(ctx context.Context, id int64) error
	// RemoveIdle deletes a job unless it is in flight and reports whether a
	// row was removed.
	RemoveIdle(ctx context.Context, id int64) (bool, error)

	MarkInFlight(ctx context.Context, id int64) error
	MarkPosted(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, message string) error

	// ResetInFlight returns interrupted in-flight jobs to pending.
	ResetInFlight(ctx context.Context) (int64, error)
	// PurgePosted deletes jobs confirmed posted but not yet removed.
	PurgePosted(ctx context.Context) (int64, error)
	// RequeueFailed moves failed jobs back to pending. With no ids every
	// failed job is requeued.
	RequeueFailed(ctx context.Context, ids ...int64) (int64, error)

	UpdateCaption(ctx context.Context, id int64, text string) error
	UpdateBatchTemplate(ctx context.Context, batchID, template string) (int64, error)

	ClearFailed(ctx context.Context) (int64, error)
	Clear(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (map[Status]int, error)

	Setting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	Settings(ctx context.Context) (map[string]string, error)

	Close() error
}

var (
	_ Queue = (*Store)(nil)
	_ Queue = (*MemoryQueue)(nil)
)
