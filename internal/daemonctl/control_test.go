package daemonctl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"autopost/internal/api"
	"autopost/internal/automation"
	"autopost/internal/config"
	"autopost/internal/daemon"
	"autopost/internal/ipc"
	"autopost/internal/logging"
	"autopost/internal/preflight"
	"autopost/internal/testsupport"
	"autopost/internal/workflow"
)

type nopPoster struct{}

func (nopPoster) Post(context.Context, automation.Post) error { return nil }

func shortDataDir(t *testing.T, cfg *config.Config) {
	t.Helper()
	dir, err := os.MkdirTemp("", "ap-ctl")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	cfg.Paths.DataDir = dir
}

func TestStopWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	shortDataDir(t, cfg)

	if _, err := StopAndTerminate(cfg, time.Second); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	if err := WaitForShutdown(cfg.SocketPath(), time.Second); err != nil {
		t.Fatalf("expected missing socket to count as shut down, got %v", err)
	}
	alive, pid, err := ProcessInfo(cfg.SocketPath())
	if err != nil || alive || pid != 0 {
		t.Fatalf("unexpected process info %v %d %v", alive, pid, err)
	}
}

func TestReadPIDAndForceKillGuard(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "autopost.pid")

	pid, err := ReadPID(pidPath)
	if err != nil || pid != 0 {
		t.Fatalf("expected 0 for missing pid file, got %d %v", pid, err)
	}
	if err := os.WriteFile(pidPath, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if pid, _ := ReadPID(pidPath); pid != 0 {
		t.Fatalf("expected 0 for malformed pid, got %d", pid)
	}
	if err := os.WriteFile(pidPath, []byte(" 4242\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if pid, _ := ReadPID(pidPath); pid != 4242 {
		t.Fatalf("expected 4242, got %d", pid)
	}

	if err := os.Remove(pidPath); err != nil {
		t.Fatalf("remove pid: %v", err)
	}
	if _, err := ForceKillProcess(pidPath, "", os.Getpid()); err == nil || !strings.Contains(err.Error(), "refusing") {
		t.Fatalf("expected refusal to kill self, got %v", err)
	}
	if _, err := ForceKillProcess(pidPath, "", 0); err == nil {
		t.Fatal("expected error without a pid")
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	shortDataDir(t, cfg)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.PutJob(t, store, "a.png", "", 0)
	testsupport.PutJob(t, store, "b.png", "", 0)
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	snap, err := BuildStatusSnapshot(context.Background(), cfg, false)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snap.Online {
		t.Fatal("expected offline snapshot")
	}
	if snap.Status.Workflow.QueueStats["pending"] != 2 {
		t.Fatalf("unexpected offline stats %+v", snap.Status.Workflow.QueueStats)
	}
	if snap.Checks[0].Label != "Autopost" || snap.Checks[0].Severity != "warn" {
		t.Fatalf("unexpected first check %+v", snap.Checks[0])
	}
}

func TestBuildStatusSnapshotOnline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	shortDataDir(t, cfg)
	cfg.API.Enabled = false
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, nopPoster{}, logger)
	d, err := daemon.New(cfg, store, mgr, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	snap, err := BuildStatusSnapshot(ctx, cfg, false)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if !snap.Online || !snap.Status.Running {
		t.Fatalf("expected running daemon, got %+v", snap.Status)
	}
	if snap.Checks[0].Severity != "ok" {
		t.Fatalf("unexpected daemon line %+v", snap.Checks[0])
	}
}

func TestWorkflowLine(t *testing.T) {
	idle := workflowLine(api.WorkflowStatus{Mode: "batch"})
	if idle.Detail != "batch mode, idle" || idle.Severity != "info" {
		t.Fatalf("unexpected idle line %+v", idle)
	}
	posting := workflowLine(api.WorkflowStatus{Mode: "trigger", InFlight: &api.Job{ID: 3, FileName: "x.png"}})
	if posting.Detail != "Posting x.png (job 3)" {
		t.Fatalf("unexpected posting line %+v", posting)
	}
	runs := workflowLine(api.WorkflowStatus{Mode: "batch", PendingRuns: 2})
	if !strings.Contains(runs.Detail, "2 run(s)") {
		t.Fatalf("unexpected runs line %+v", runs)
	}
}

func TestLineForCheck(t *testing.T) {
	cases := []struct {
		result   preflight.Result
		severity string
	}{
		{preflight.Result{Name: "Notifications", Passed: true, Detail: "Disabled"}, "info"},
		{preflight.Result{Name: "Browser", Passed: true, Detail: "launched on demand"}, "ok"},
		{preflight.Result{Name: "Data directory", Detail: "missing"}, "error"},
		{preflight.Result{Name: "Browser", Detail: "connection refused"}, "warn"},
	}
	for _, tc := range cases {
		if got := lineForCheck(tc.result).Severity; got != tc.severity {
			t.Fatalf("%+v: expected %s, got %s", tc.result, tc.severity, got)
		}
	}
}
