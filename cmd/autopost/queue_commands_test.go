package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"autopost/internal/api"
	"autopost/internal/testsupport"
)

func listJobs(t *testing.T, env *cliTestEnv, args ...string) []api.Job {
	t.Helper()
	out, _, err := runCLI(t, env.configPath, append([]string{"queue", "list", "--json"}, args...)...)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	var jobs []api.Job
	if err := json.Unmarshal([]byte(out), &jobs); err != nil {
		t.Fatalf("decode jobs: %v\n%s", err, out)
	}
	return jobs
}

func TestAddAndManageQueue(t *testing.T) {
	env := setupCLITestEnv(t)
	cat := filepath.Join(env.baseDir, "images", "cat.png")
	dog := filepath.Join(env.baseDir, "images", "dog.png")
	testsupport.WriteImage(t, cat)
	testsupport.WriteImage(t, dog)
	if err := os.WriteFile(filepath.Join(env.baseDir, "images", "cat.txt"), []byte("from sidecar\n"), 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "add", cat, dog, "--delay", "3", "--template", "regex: (\\w+)\\.png\nPhoto of \\1")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	requireContains(t, out, "Queued 2 image(s)")

	jobs := listJobs(t, env)
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].Caption != "Photo of cat\n\nfrom sidecar" || jobs[1].Caption != "Photo of dog" {
		t.Fatalf("unexpected captions %q, %q", jobs[0].Caption, jobs[1].Caption)
	}
	if jobs[0].DelaySeconds != 3 || jobs[0].Status != "pending" {
		t.Fatalf("unexpected job %+v", jobs[0])
	}

	out, _, err = runCLI(t, env.configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Pending")
	requireContains(t, out, "dog.png")

	second := strconv.FormatInt(jobs[1].ID, 10)
	if _, _, err := runCLI(t, env.configPath, "queue", "caption", second, "good dog"); err != nil {
		t.Fatalf("queue caption: %v", err)
	}
	out, _, err = runCLI(t, env.configPath, "queue", "show", second)
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	requireContains(t, out, "good dog")

	out, _, err = runCLI(t, env.configPath, "queue", "template", jobs[0].BatchID, "Zoo day")
	if err != nil {
		t.Fatalf("queue template: %v", err)
	}
	requireContains(t, out, "2 pending post(s)")

	first := strconv.FormatInt(jobs[0].ID, 10)
	out, _, err = runCLI(t, env.configPath, "queue", "cancel", first)
	if err != nil {
		t.Fatalf("queue cancel: %v", err)
	}
	requireContains(t, out, "Removed job "+first)
	if _, _, err := runCLI(t, env.configPath, "queue", "cancel", first); err == nil {
		t.Fatal("expected cancelling a removed job to fail")
	}

	remaining := listJobs(t, env, "--status", "pending")
	if len(remaining) != 1 || remaining[0].Caption != "Zoo day\n\ngood dog" {
		t.Fatalf("unexpected remaining jobs %+v", remaining)
	}

	out, _, err = runCLI(t, env.configPath, "queue", "status")
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, out, "Pending")

	out, _, err = runCLI(t, env.configPath, "queue", "clear")
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Removed 1 post(s)")
}

func TestAddRejectsInvalidInput(t *testing.T) {
	env := setupCLITestEnv(t)
	notes := filepath.Join(env.baseDir, "notes.txt")
	if err := os.WriteFile(notes, []byte("plain text"), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}

	if _, _, err := runCLI(t, env.configPath, "add", notes); err == nil {
		t.Fatal("expected non-image to be rejected")
	}
	if _, _, err := runCLI(t, env.configPath, "add"); err == nil {
		t.Fatal("expected error without files")
	}
	img := filepath.Join(env.baseDir, "a.png")
	testsupport.WriteImage(t, img)
	if _, _, err := runCLI(t, env.configPath, "add", img, "--manifest", "batch.yaml"); err == nil {
		t.Fatal("expected files and --manifest to conflict")
	}
	if _, _, err := runCLI(t, env.configPath, "add", img, "--delay", "-1"); err == nil {
		t.Fatal("expected negative delay to be rejected")
	}
	if jobs := listJobs(t, env); len(jobs) != 0 {
		t.Fatalf("expected nothing queued, got %d", len(jobs))
	}
}

func TestQueueCommandsRejectBadIDs(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env.configPath, "queue", "show", "abc"); err == nil {
		t.Fatal("expected invalid id error")
	}
	if _, _, err := runCLI(t, env.configPath, "queue", "retry", "0"); err == nil {
		t.Fatal("expected invalid id error")
	}
	out, _, err := runCLI(t, env.configPath, "queue", "retry")
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, "No failed posts to retry")
}

func TestQueueWithoutDaemon(t *testing.T) {
	_, configPath := newCLIConfig(t)
	_, _, err := runCLI(t, configPath, "queue", "list")
	if err == nil {
		t.Fatal("expected error without a daemon")
	}
	requireContains(t, err.Error(), "autopost start")
}

func TestAddFromManifest(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteImage(t, filepath.Join(env.baseDir, "batch", "one.png"))
	testsupport.WriteImage(t, filepath.Join(env.baseDir, "batch", "two.png"))
	manifestPath := filepath.Join(env.baseDir, "batch", "batch.yaml")
	content := "template: Weekend set\nitems:\n  - file: one.png\n    caption: first\n  - file: two.png\n    delay_seconds: 9\n"
	if err := os.WriteFile(manifestPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "add", "--manifest", manifestPath)
	if err != nil {
		t.Fatalf("add --manifest: %v", err)
	}
	requireContains(t, out, "Queued 2 image(s)")

	jobs := listJobs(t, env)
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].Caption != "Weekend set\n\nfirst" || jobs[1].DelaySeconds != 9 {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
}
