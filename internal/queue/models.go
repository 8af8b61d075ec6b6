package queue

import (
	"strings"
	"time"

	"autopost/internal/caption"
	"autopost/internal/textutil"
)

// Status represents the lifecycle of a posting job.
type Status string

const (
	StatusPending  Status = "pending"
	StatusInFlight Status = "in_flight"
	StatusPosted   Status = "posted"
	StatusFailed   Status = "failed"
)

// DefaultAttachmentName is used when a job carries no file name.
const DefaultAttachmentName = "image.png"

var allStatuses = []Status{StatusPending, StatusInFlight, StatusPosted, StatusFailed}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a user-supplied label into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	for _, status := range allStatuses {
		if string(status) == normalized {
			return status, true
		}
	}
	return "", false
}

// Job is a single image plus caption awaiting submission.
type Job struct {
	ID              int64     `json:"id"`
	ImageData       []byte    `json:"-"`
	ImageSize       int64     `json:"image_size"`
	MimeType        string    `json:"mime_type"`
	FileName        string    `json:"file_name,omitempty"`
	CaptionOverride string    `json:"caption,omitempty"`
	BatchID         string    `json:"batch_id,omitempty"`
	BatchTemplate   string    `json:"batch_template,omitempty"`
	DelaySeconds    int       `json:"delay_seconds"`
	Status          Status    `json:"status"`
	Posted          bool      `json:"posted"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Caption returns the effective caption. It is recomputed on every call so
// edits to the batch template or override apply to the next dispatch.
func (j *Job) Caption() string {
	if j == nil {
		return ""
	}
	return caption.Compose(j.FileName, j.BatchTemplate, j.CaptionOverride)
}

// AttachmentName returns the file name handed to the page's upload control.
func (j *Job) AttachmentName() string {
	if j == nil {
		return DefaultAttachmentName
	}
	if name := textutil.SanitizeFileName(j.FileName); name != "" {
		return name
	}
	return DefaultAttachmentName
}

// Delay returns the post-submission pause as a duration.
func (j *Job) Delay() time.Duration {
	if j == nil || j.DelaySeconds <= 0 {
		return 0
	}
	return time.Duration(j.DelaySeconds) * time.Second
}

// NewJob describes a job to insert.
type NewJob struct {
	ImageData       []byte
	MimeType        string
	FileName        string
	CaptionOverride string
	BatchID         string
	BatchTemplate   string
	DelaySeconds    int
}

// Validate rejects jobs that could never be posted.
func (n NewJob) Validate() error {
	if len(n.ImageData) == 0 {
		return ErrEmptyImage
	}
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(n.MimeType)), "image/") {
		return ErrNotImage
	}
	if n.DelaySeconds < 0 {
		return ErrNegativeDelay
	}
	return nil
}

// Settings keys persisted alongside the queue.
const (
	SettingCaptionTemplate        = "caption_template"
	SettingTriggerIntervalMinutes = "trigger_interval_minutes"
	SettingDefaultDelaySeconds    = "default_delay_seconds"
)

// KnownSettings lists the keys accepted by SetSetting.
var KnownSettings = []string{
	SettingCaptionTemplate,
	SettingTriggerIntervalMinutes,
	SettingDefaultDelaySeconds,
}

// IsKnownSetting reports whether key is a recognised setting.
func IsKnownSetting(key string) bool {
	for _, known := range KnownSettings {
		if key == known {
			return true
		}
	}
	return false
}
