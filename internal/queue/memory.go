package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryQueue is a non-persistent Queue used for one-shot batch runs.
type MemoryQueue struct {
	mu       sync.Mutex
	jobs     []*Job
	nextID   int64
	settings map[string]string
	now      func() time.Time
}

// NewMemoryQueue returns an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		settings: make(map[string]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (q *MemoryQueue) Put(_ context.Context, job NewJob) (*Job, error) {
	if err := job.Validate(); err != nil {
		return nil, storeErr("put", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	now := q.now()
	data := make([]byte, len(job.ImageData))
	copy(data, job.ImageData)
	stored := &Job{
		ID:              q.nextID,
		ImageData:       data,
		ImageSize:       int64(len(data)),
		MimeType:        job.MimeType,
		FileName:        strings.TrimSpace(job.FileName),
		CaptionOverride: job.CaptionOverride,
		BatchID:         job.BatchID,
		BatchTemplate:   job.BatchTemplate,
		DelaySeconds:    job.DelaySeconds,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	q.jobs = append(q.jobs, stored)
	return cloneJob(stored, true), nil
}

func (q *MemoryQueue) Next(context.Context) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, job := range q.jobs {
		if job.Status == StatusPending && !job.Posted {
			return cloneJob(job, true), nil
		}
	}
	return nil, nil
}

func (q *MemoryQueue) Get(_ context.Context, id int64) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job := q.findLocked(id); job != nil {
		return cloneJob(job, true), nil
	}
	return nil, nil
}

func (q *MemoryQueue) List(_ context.Context, statuses ...Status) ([]*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*Job
	for _, job := range q.jobs {
		if len(statuses) > 0 && !containsStatus(statuses, job.Status) {
			continue
		}
		out = append(out, cloneJob(job, false))
	}
	return out, nil
}

func (q *MemoryQueue) Remove(_ context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeWhereLocked(func(job *Job) bool { return job.ID == id })
	return nil
}

func (q *MemoryQueue) RemoveIdle(_ context.Context, id int64) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	before := len(q.jobs)
	q.removeWhereLocked(func(job *Job) bool { return job.ID == id && job.Status != StatusInFlight })
	return len(q.jobs) < before, nil
}

func (q *MemoryQueue) MarkInFlight(_ context.Context, id int64) error {
	return q.update(id, func(job *Job) {
		job.Status = StatusInFlight
		job.ErrorMessage = ""
	})
}

func (q *MemoryQueue) MarkPosted(_ context.Context, id int64) error {
	return q.update(id, func(job *Job) {
		job.Status = StatusPosted
		job.Posted = true
		job.ErrorMessage = ""
	})
}

func (q *MemoryQueue) MarkFailed(_ context.Context, id int64, message string) error {
	return q.update(id, func(job *Job) {
		job.Status = StatusFailed
		job.ErrorMessage = message
	})
}

func (q *MemoryQueue) ResetInFlight(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for _, job := range q.jobs {
		if job.Status == StatusInFlight && !job.Posted {
			job.Status = StatusPending
			job.UpdatedAt = q.now()
			n++
		}
	}
	return n, nil
}

func (q *MemoryQueue) PurgePosted(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeWhereLocked(func(job *Job) bool { return job.Posted }), nil
}

func (q *MemoryQueue) RequeueFailed(_ context.Context, ids ...int64) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for _, job := range q.jobs {
		if job.Status != StatusFailed {
			continue
		}
		if len(ids) > 0 && !containsID(ids, job.ID) {
			continue
		}
		job.Status = StatusPending
		job.ErrorMessage = ""
		job.UpdatedAt = q.now()
		n++
	}
	return n, nil
}

func (q *MemoryQueue) UpdateCaption(_ context.Context, id int64, text string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := q.findLocked(id)
	if job == nil || job.Status != StatusPending {
		return storeErr("update caption", fmt.Errorf("job %d: %w", id, ErrNotPending))
	}
	job.CaptionOverride = text
	job.UpdatedAt = q.now()
	return nil
}

func (q *MemoryQueue) UpdateBatchTemplate(_ context.Context, batchID, template string) (int64, error) {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return 0, storeErr("update batch template", fmt.Errorf("batch id is required"))
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for _, job := range q.jobs {
		if job.BatchID == batchID && job.Status == StatusPending {
			job.BatchTemplate = template
			job.UpdatedAt = q.now()
			n++
		}
	}
	return n, nil
}

func (q *MemoryQueue) ClearFailed(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeWhereLocked(func(job *Job) bool { return job.Status == StatusFailed }), nil
}

func (q *MemoryQueue) Clear(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeWhereLocked(func(job *Job) bool { return job.Status != StatusInFlight }), nil
}

func (q *MemoryQueue) Stats(context.Context) (map[Status]int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	stats := make(map[Status]int)
	for _, job := range q.jobs {
		stats[job.Status]++
	}
	return stats, nil
}

func (q *MemoryQueue) Setting(_ context.Context, key string) (string, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	value, ok := q.settings[key]
	return value, ok, nil
}

func (q *MemoryQueue) SetSetting(_ context.Context, key, value string) error {
	if !IsKnownSetting(key) {
		return storeErr("write setting", fmt.Errorf("%w: %q", ErrUnknownSetting, key))
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.settings[key] = value
	return nil
}

func (q *MemoryQueue) Settings(context.Context) (map[string]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string]string, len(q.settings))
	for k, v := range q.settings {
		out[k] = v
	}
	return out, nil
}

func (q *MemoryQueue) Close() error { return nil }

func (q *MemoryQueue) update(id int64, fn func(*Job)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job := q.findLocked(id); job != nil {
		fn(job)
		job.UpdatedAt = q.now()
	}
	return nil
}

func (q *MemoryQueue) findLocked(id int64) *Job {
	for _, job := range q.jobs {
		if job.ID == id {
			return job
		}
	}
	return nil
}

func (q *MemoryQueue) removeWhereLocked(match func(*Job) bool) int64 {
	kept := q.jobs[:0]
	var removed int64
	for _, job := range q.jobs {
		if match(job) {
			removed++
			continue
		}
		kept = append(kept, job)
	}
	for i := len(kept); i < len(q.jobs); i++ {
		q.jobs[i] = nil
	}
	q.jobs = kept
	return removed
}

func cloneJob(job *Job, withData bool) *Job {
	out := *job
	if withData {
		out.ImageData = make([]byte, len(job.ImageData))
		copy(out.ImageData, job.ImageData)
	} else {
		out.ImageData = nil
	}
	return &out
}

func containsStatus(statuses []Status, status Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
