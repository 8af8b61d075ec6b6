package ipc

import (
	"autopost/internal/api"
	"autopost/internal/events"
)

// StartRequest triggers daemon workflow startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result. Exiting is true when the daemon process
// will shut down after replying.
type StopResponse struct {
	Stopped bool `json:"stopped"`
	Exiting bool `json:"exiting"`
}

// StatusRequest fetches daemon status. Probe opens the compose page.
type StatusRequest struct {
	Probe bool `json:"probe"`
}

// StatusResponse is the daemon status DTO.
type StatusResponse = api.DaemonStatus

// Job mirrors the HTTP API job DTO.
type Job = api.Job

// SubmitItem is one image of a submission.
type SubmitItem struct {
	Data         []byte `json:"data"`
	MimeType     string `json:"mime_type,omitempty"`
	FileName     string `json:"file_name,omitempty"`
	Caption      string `json:"caption,omitempty"`
	DelaySeconds *int   `json:"delay_seconds,omitempty"`
}

// SubmitRequest queues one or more images as a single batch.
type SubmitRequest struct {
	Items    []SubmitItem `json:"items"`
	Template string       `json:"template,omitempty"`
}

// SubmitResponse acknowledges a submission. Completion is reported through
// events, never by this response.
type SubmitResponse struct {
	Started bool    `json:"started"`
	BatchID string  `json:"batch_id"`
	JobIDs  []int64 `json:"job_ids"`
}

// JobsRequest filters the job listing by status.
type JobsRequest struct {
	Statuses []string `json:"statuses"`
}

// JobsResponse contains queued jobs in drain order.
type JobsResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobRequest fetches a single job by id.
type JobRequest struct {
	ID int64 `json:"id"`
}

// JobResponse returns a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// CancelRequest removes a job that has not started posting.
type CancelRequest struct {
	ID int64 `json:"id"`
}

// CancelResponse acknowledges a cancel.
type CancelResponse struct {
	Removed bool `json:"removed"`
}

// RetryRequest requeues failed jobs; all of them when IDs is empty.
type RetryRequest struct {
	IDs []int64 `json:"ids"`
}

// RetryResponse reports how many jobs were requeued.
type RetryResponse struct {
	Updated int64 `json:"updated"`
}

// ClearRequest removes queued jobs. FailedOnly limits removal to failed jobs.
type ClearRequest struct {
	FailedOnly bool `json:"failed_only"`
}

// ClearResponse reports how many jobs were removed.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}

// ResumeRequest restarts draining of pending jobs.
type ResumeRequest struct{}

// ResumeResponse reports how many jobs the resumed run will process.
type ResumeResponse struct {
	Pending int `json:"pending"`
}

// CaptionRequest replaces the caption override of a pending job.
type CaptionRequest struct {
	ID      int64  `json:"id"`
	Caption string `json:"caption"`
}

// CaptionResponse acknowledges a caption edit.
type CaptionResponse struct {
	Updated bool `json:"updated"`
}

// TemplateRequest replaces the caption template of a batch.
type TemplateRequest struct {
	BatchID  string `json:"batch_id"`
	Template string `json:"template"`
}

// TemplateResponse reports how many pending jobs picked up the template.
type TemplateResponse struct {
	Updated int64 `json:"updated"`
}

// EventsRequest fetches status events after Since. A positive WaitMillis
// blocks until an event arrives or the wait elapses.
type EventsRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	WaitMillis int    `json:"wait_millis"`
}

// EventsResponse carries events and the sequence to resume from.
type EventsResponse struct {
	Events []events.Event `json:"events"`
	Next   uint64         `json:"next"`
}

// SettingsRequest fetches effective posting settings.
type SettingsRequest struct{}

// SettingsResponse carries posting settings keyed by name.
type SettingsResponse struct {
	Settings map[string]string `json:"settings"`
}

// SetSettingRequest stores a posting setting.
type SetSettingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SetSettingResponse acknowledges a stored setting.
type SetSettingResponse struct {
	Stored bool `json:"stored"`
}

// LogTailRequest fetches log lines from the daemon's run log.
type LogTailRequest struct {
	Offset     int64  `json:"offset"`
	Limit      int    `json:"limit"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_millis"`
	Contains   string `json:"contains"`
}

// LogTailResponse carries log lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// DatabaseHealthRequest fetches queue database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports queue database diagnostics.
type DatabaseHealthResponse struct {
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	SchemaVersion    int    `json:"schema_version"`
	TotalJobs        int    `json:"total_jobs"`
	Error            string `json:"error,omitempty"`
}

// TestNotificationRequest sends a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports whether the notification was sent.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
