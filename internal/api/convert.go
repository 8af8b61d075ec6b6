package api

import (
	"time"

	"autopost/internal/automation"
	"autopost/internal/queue"
	"autopost/internal/workflow"
)

// FromJob converts a queue record to its API representation.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}
	size := job.ImageSize
	if size == 0 {
		size = int64(len(job.ImageData))
	}
	return Job{
		ID:              job.ID,
		FileName:        job.AttachmentName(),
		MimeType:        job.MimeType,
		ImageSize:       size,
		Status:          string(job.Status),
		Caption:         job.Caption(),
		CaptionOverride: job.CaptionOverride,
		BatchID:         job.BatchID,
		BatchTemplate:   job.BatchTemplate,
		DelaySeconds:    job.DelaySeconds,
		ErrorMessage:    job.ErrorMessage,
		CreatedAt:       formatTime(job.CreatedAt),
		UpdatedAt:       formatTime(job.UpdatedAt),
	}
}

// FromJobs converts a slice of queue records into API DTOs. The result is
// never nil so it encodes as an empty list.
func FromJobs(jobs []*queue.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		out = append(out, FromJob(job))
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:     summary.Running,
		Mode:        string(summary.Mode),
		Retention:   string(summary.Retention),
		Armed:       summary.Armed,
		NextFiring:  formatTime(summary.NextFiring),
		LastError:   summary.LastError,
		LastPosted:  formatTime(summary.LastPosted),
		QueueStats:  MergeQueueStats(summary.QueueStats),
		PendingRuns: summary.PendingRun,
	}
	if summary.InFlight != nil {
		job := FromJob(summary.InFlight)
		wf.InFlight = &job
	}
	return wf
}

// FromProbe converts a driver probe result.
func FromProbe(result *automation.ProbeResult) *PageStatus {
	if result == nil {
		return nil
	}
	return &PageStatus{Reachable: result.Reachable, URL: result.URL, Error: result.Error}
}

// MergeQueueStats produces a string-keyed representation of queue stats with
// every known status present.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = 0
	}
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// ParseTime parses a payload timestamp, returning the zero time for empty or
// malformed values.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
