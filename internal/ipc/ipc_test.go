package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"autopost/internal/automation"
	"autopost/internal/config"
	"autopost/internal/daemon"
	"autopost/internal/ipc"
	"autopost/internal/logging"
	"autopost/internal/queue"
	"autopost/internal/testsupport"
	"autopost/internal/workflow"
)

type recordingPoster struct {
	mu       sync.Mutex
	captions []string
}

func (p *recordingPoster) Post(_ context.Context, post automation.Post) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captions = append(p.captions, post.Caption)
	return nil
}

type harness struct {
	cfg      *config.Config
	store    *queue.Store
	client   *ipc.Client
	logPath  string
	shutdown chan struct{}
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.API.Enabled = false
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	logPath := filepath.Join(testsupport.BaseDir(cfg), "autopost-test.log")
	mgr := workflow.NewManager(cfg, store, &recordingPoster{}, logger)
	d, err := daemon.New(cfg, store, mgr, logger, daemon.WithLogPath(logPath))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// Unix socket paths are length limited, so keep them out of t.TempDir.
	dir, err := os.MkdirTemp("", "ap-ipc")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	socket := filepath.Join(dir, "autopost.sock")

	shutdown := make(chan struct{})
	var once sync.Once
	srv, err := ipc.NewServer(ctx, socket, d, logger, ipc.WithShutdown(func() {
		once.Do(func() { close(shutdown) })
	}))
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return &harness{cfg: cfg, store: store, client: client, logPath: logPath, shutdown: shutdown}
}

func TestIPCStartStatusAndStop(t *testing.T) {
	h := newHarness(t)

	startResp, err := h.client.Start()
	if err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	if !startResp.Started {
		t.Fatalf("expected Started=true, message=%s", startResp.Message)
	}

	status, err := h.client.Status(false)
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running || status.PID != os.Getpid() {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Workflow.Mode != config.ModeTrigger {
		t.Fatalf("unexpected mode %q", status.Workflow.Mode)
	}
	if status.QueuePath != h.cfg.QueuePath() {
		t.Fatalf("unexpected queue path %q", status.QueuePath)
	}

	stopResp, err := h.client.Stop()
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !stopResp.Stopped || !stopResp.Exiting {
		t.Fatalf("unexpected stop response %+v", stopResp)
	}
	select {
	case <-h.shutdown:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown hook was not invoked")
	}
}

func TestIPCQueueManagement(t *testing.T) {
	h := newHarness(t)
	png := testsupport.PNG(t)
	delay := 2

	ack, err := h.client.Submit(ipc.SubmitRequest{
		Template: "regex: (\\w+)\\.png\nPhoto of \\1",
		Items: []ipc.SubmitItem{
			{Data: png, FileName: "cat.png", Caption: "first"},
			{Data: png, FileName: "dog.png", DelaySeconds: &delay},
		},
	})
	if err != nil {
		t.Fatalf("Submit RPC failed: %v", err)
	}
	if !ack.Started || len(ack.JobIDs) != 2 {
		t.Fatalf("unexpected ack %+v", ack)
	}

	jobs, err := h.client.Jobs([]string{"pending"})
	if err != nil {
		t.Fatalf("Jobs RPC failed: %v", err)
	}
	if len(jobs.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs.Jobs))
	}
	if jobs.Jobs[0].Caption != "Photo of cat\n\nfirst" || jobs.Jobs[1].Caption != "Photo of dog" {
		t.Fatalf("unexpected captions %q, %q", jobs.Jobs[0].Caption, jobs.Jobs[1].Caption)
	}
	if jobs.Jobs[1].DelaySeconds != 2 || jobs.Jobs[0].MimeType != "image/png" {
		t.Fatalf("unexpected job fields %+v", jobs.Jobs)
	}
	if _, err := h.client.Jobs([]string{"bogus"}); err == nil {
		t.Fatal("expected error for unknown status")
	}

	if _, err := h.client.UpdateCaption(ack.JobIDs[1], "edited"); err != nil {
		t.Fatalf("UpdateCaption RPC failed: %v", err)
	}
	tmpl, err := h.client.UpdateTemplate(ack.BatchID, "Zoo day")
	if err != nil {
		t.Fatalf("UpdateTemplate RPC failed: %v", err)
	}
	if tmpl.Updated != 2 {
		t.Fatalf("expected 2 jobs updated, got %d", tmpl.Updated)
	}
	job, err := h.client.Job(ack.JobIDs[1])
	if err != nil {
		t.Fatalf("Job RPC failed: %v", err)
	}
	if job.Job.Caption != "Zoo day\n\nedited" {
		t.Fatalf("unexpected caption %q", job.Job.Caption)
	}

	if _, err := h.client.Cancel(ack.JobIDs[0]); err != nil {
		t.Fatalf("Cancel RPC failed: %v", err)
	}
	if _, err := h.client.Cancel(ack.JobIDs[0]); err == nil {
		t.Fatal("expected error cancelling a missing job")
	}

	cleared, err := h.client.Clear(false)
	if err != nil {
		t.Fatalf("Clear RPC failed: %v", err)
	}
	if cleared.Removed != 1 {
		t.Fatalf("expected 1 removed, got %d", cleared.Removed)
	}
}

func TestIPCSubmitRejectsNonImage(t *testing.T) {
	h := newHarness(t)
	_, err := h.client.Submit(ipc.SubmitRequest{Items: []ipc.SubmitItem{{Data: []byte("plain text"), FileName: "notes.txt"}}})
	if err == nil {
		t.Fatal("expected validation error")
	}
	jobs, err := h.store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected nothing queued, got %d", len(jobs))
	}
}

func TestIPCBatchEvents(t *testing.T) {
	h := newHarness(t, testsupport.WithMode(config.ModeBatch))
	if _, err := h.client.Start(); err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	zero := 0
	if _, err := h.client.Submit(ipc.SubmitRequest{Items: []ipc.SubmitItem{
		{Data: testsupport.PNG(t), FileName: "a.png", Caption: "one", DelaySeconds: &zero},
	}}); err != nil {
		t.Fatalf("Submit RPC failed: %v", err)
	}

	var since uint64
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := h.client.Events(ipc.EventsRequest{Since: since, WaitMillis: 500})
		if err != nil {
			t.Fatalf("Events RPC failed: %v", err)
		}
		for _, evt := range resp.Events {
			if evt.Complete {
				if evt.Severity != "success" {
					t.Fatalf("expected successful completion, got %+v", evt)
				}
				return
			}
		}
		since = resp.Next
	}
	t.Fatal("batch did not complete")
}

func TestIPCSettingsAndDiagnostics(t *testing.T) {
	h := newHarness(t)

	if _, err := h.client.SetSetting(queue.SettingDefaultDelaySeconds, "9"); err != nil {
		t.Fatalf("SetSetting RPC failed: %v", err)
	}
	if _, err := h.client.SetSetting("unknown_key", "1"); err == nil {
		t.Fatal("expected error for unknown setting")
	}
	settings, err := h.client.Settings()
	if err != nil {
		t.Fatalf("Settings RPC failed: %v", err)
	}
	if settings.Settings[queue.SettingDefaultDelaySeconds] != "9" {
		t.Fatalf("unexpected settings %+v", settings.Settings)
	}

	health, err := h.client.DatabaseHealth()
	if err != nil {
		t.Fatalf("DatabaseHealth RPC failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable {
		t.Fatalf("unexpected database health %+v", health)
	}

	notify, err := h.client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification RPC failed: %v", err)
	}
	if notify.Sent {
		t.Fatal("expected no notification without a topic")
	}
}

func TestIPCLogTail(t *testing.T) {
	h := newHarness(t)
	if err := os.WriteFile(h.logPath, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}

	resp, err := h.client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("LogTail failed: %v", err)
	}
	if len(resp.Lines) != 2 || resp.Lines[0] != "second" || resp.Lines[1] != "third" {
		t.Fatalf("unexpected log tail response: %#v", resp.Lines)
	}

	done := make(chan []string, 1)
	go func(offset int64) {
		follow, err := h.client.LogTail(ipc.LogTailRequest{Offset: offset, Follow: true, WaitMillis: 3000})
		if err != nil {
			t.Errorf("LogTail follow error: %v", err)
			done <- nil
			return
		}
		done <- follow.Lines
	}(resp.Offset)

	time.Sleep(100 * time.Millisecond)
	f, err := os.OpenFile(h.logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	if _, err := f.WriteString("fourth\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case lines := <-done:
		if len(lines) != 1 || lines[0] != "fourth" {
			t.Fatalf("unexpected follow lines: %#v", lines)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not return")
	}
}
