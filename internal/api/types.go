package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a queued post in a transport-friendly format.
type Job struct {
	ID              int64  `json:"id"`
	FileName        string `json:"fileName"`
	MimeType        string `json:"mimeType"`
	ImageSize       int64  `json:"imageSize"`
	Status          string `json:"status"`
	Caption         string `json:"caption"`
	CaptionOverride string `json:"captionOverride,omitempty"`
	BatchID         string `json:"batchId,omitempty"`
	BatchTemplate   string `json:"batchTemplate,omitempty"`
	DelaySeconds    int    `json:"delaySeconds"`
	ErrorMessage    string `json:"errorMessage,omitempty"`
	CreatedAt       string `json:"createdAt,omitempty"`
	UpdatedAt       string `json:"updatedAt,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	Mode        string         `json:"mode"`
	Retention   string         `json:"retention"`
	Armed       bool           `json:"armed"`
	NextFiring  string         `json:"nextFiring,omitempty"`
	InFlight    *Job           `json:"inFlight,omitempty"`
	LastError   string         `json:"lastError,omitempty"`
	LastPosted  string         `json:"lastPosted,omitempty"`
	QueueStats  map[string]int `json:"queueStats"`
	PendingRuns int            `json:"pendingRuns"`
}

// PageStatus reports whether the compose page could be opened.
type PageStatus struct {
	Reachable bool   `json:"reachable"`
	URL       string `json:"url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running    bool           `json:"running"`
	PID        int            `json:"pid"`
	QueuePath  string         `json:"queuePath"`
	LockPath   string         `json:"lockPath"`
	LogPath    string         `json:"logPath,omitempty"`
	APIAddress string         `json:"apiAddress,omitempty"`
	InboxDir   string         `json:"inboxDir,omitempty"`
	Workflow   WorkflowStatus `json:"workflow"`
	Page       *PageStatus    `json:"page,omitempty"`
}

// StatusLine is a single labelled health line.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// JobListResponse wraps a collection of jobs for API responses.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// CountResponse reports how many jobs an operation touched.
type CountResponse struct {
	Count int64 `json:"count"`
}
