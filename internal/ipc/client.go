package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const dialTimeout = 2 * time.Second

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[T any](c *Client, method string, req any) (*T, error) {
	var resp T
	if err := c.client.Call(serviceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	return call[StartResponse](c, "Start", StartRequest{})
}

// Stop requests the daemon to stop and exit.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// Status retrieves the daemon status. With probe set the compose page is opened.
func (c *Client) Status(probe bool) (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{Probe: probe})
}

// Submit queues a batch of images.
func (c *Client) Submit(req SubmitRequest) (*SubmitResponse, error) {
	return call[SubmitResponse](c, "Submit", req)
}

// Jobs lists queued jobs, optionally filtered by status labels.
func (c *Client) Jobs(statuses []string) (*JobsResponse, error) {
	return call[JobsResponse](c, "Jobs", JobsRequest{Statuses: statuses})
}

// Job fetches a single job.
func (c *Client) Job(id int64) (*JobResponse, error) {
	return call[JobResponse](c, "Job", JobRequest{ID: id})
}

// Cancel removes a job that has not started posting.
func (c *Client) Cancel(id int64) (*CancelResponse, error) {
	return call[CancelResponse](c, "Cancel", CancelRequest{ID: id})
}

// Retry requeues failed jobs, all of them when ids is empty.
func (c *Client) Retry(ids []int64) (*RetryResponse, error) {
	return call[RetryResponse](c, "Retry", RetryRequest{IDs: ids})
}

// Clear removes queued jobs, only failed ones when failedOnly is set.
func (c *Client) Clear(failedOnly bool) (*ClearResponse, error) {
	return call[ClearResponse](c, "Clear", ClearRequest{FailedOnly: failedOnly})
}

// Resume restarts draining of pending jobs.
func (c *Client) Resume() (*ResumeResponse, error) {
	return call[ResumeResponse](c, "Resume", ResumeRequest{})
}

// UpdateCaption replaces a pending job's caption override.
func (c *Client) UpdateCaption(id int64, caption string) (*CaptionResponse, error) {
	return call[CaptionResponse](c, "UpdateCaption", CaptionRequest{ID: id, Caption: caption})
}

// UpdateTemplate replaces a batch's caption template.
func (c *Client) UpdateTemplate(batchID, template string) (*TemplateResponse, error) {
	return call[TemplateResponse](c, "UpdateTemplate", TemplateRequest{BatchID: batchID, Template: template})
}

// Events fetches status events.
func (c *Client) Events(req EventsRequest) (*EventsResponse, error) {
	return call[EventsResponse](c, "Events", req)
}

// Settings returns effective posting settings.
func (c *Client) Settings() (*SettingsResponse, error) {
	return call[SettingsResponse](c, "Settings", SettingsRequest{})
}

// SetSetting stores a posting setting.
func (c *Client) SetSetting(key, value string) (*SetSettingResponse, error) {
	return call[SetSettingResponse](c, "SetSetting", SetSettingRequest{Key: key, Value: value})
}

// LogTail reads lines from the daemon log.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	return call[LogTailResponse](c, "LogTail", req)
}

// DatabaseHealth returns queue database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	return call[DatabaseHealthResponse](c, "DatabaseHealth", DatabaseHealthRequest{})
}

// TestNotification sends a test notification.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}
