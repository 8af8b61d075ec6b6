package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"autopost/internal/automation"
	"autopost/internal/config"
	"autopost/internal/queue"
)

// Poster submits a single post. automation.Driver satisfies it.
type Poster interface {
	Post(ctx context.Context, post automation.Post) error
}

// Mode selects how the queue is drained.
type Mode string

const (
	ModeTrigger Mode = config.ModeTrigger
	ModeBatch   Mode = config.ModeBatch
)

// RetentionPolicy decides what happens to a failed job and to the jobs of
// its run that were never attempted.
type RetentionPolicy string

const (
	// RetainFailed marks the failed job failed and leaves the rest pending.
	RetainFailed RetentionPolicy = config.RetentionRetain
	// DropFailed removes the failed job and the aborted remainder of its run.
	DropFailed RetentionPolicy = config.RetentionDrop
)

// ParseRetentionPolicy converts a config value into a RetentionPolicy.
func ParseRetentionPolicy(value string) (RetentionPolicy, error) {
	switch RetentionPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case RetainFailed, "":
		return RetainFailed, nil
	case DropFailed:
		return DropFailed, nil
	default:
		return "", fmt.Errorf("unknown failure retention %q", value)
	}
}

// SubmitItem is one image of a submission.
type SubmitItem struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mime_type"`
	FileName string `json:"file_name,omitempty"`
	Caption  string `json:"caption,omitempty"`
	// DelaySeconds overrides the default per-job delay when set.
	DelaySeconds *int `json:"delay_seconds,omitempty"`
}

// Submission is an ordered list of images posted as one batch.
type Submission struct {
	Items []SubmitItem `json:"items"`
	// Template is the batch caption template. Empty falls back to the
	// caption_template setting.
	Template string `json:"template,omitempty"`
}

// Ack is returned as soon as a submission has been queued. Completion is
// reported only through the event stream.
type Ack struct {
	Started bool    `json:"started"`
	BatchID string  `json:"batch_id"`
	JobIDs  []int64 `json:"job_ids"`
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool                 `json:"running"`
	Mode       Mode                 `json:"mode"`
	Retention  RetentionPolicy      `json:"retention"`
	Armed      bool                 `json:"armed"`
	NextFiring time.Time            `json:"next_firing,omitempty"`
	InFlight   *queue.Job           `json:"in_flight,omitempty"`
	LastError  string               `json:"last_error,omitempty"`
	LastPosted time.Time            `json:"last_posted,omitempty"`
	QueueStats map[queue.Status]int `json:"queue_stats"`
	PendingRun int                  `json:"pending_runs"`
}
