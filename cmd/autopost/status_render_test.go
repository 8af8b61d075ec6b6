package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"autopost/internal/api"
	"autopost/internal/daemonctl"
	"autopost/internal/events"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Autopost", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Autopost:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Autopost", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestStatusKindFromSeverity(t *testing.T) {
	cases := map[string]statusKind{
		"ok":      statusOK,
		"success": statusOK,
		"WARN":    statusWarn,
		"error":   statusError,
		"info":    statusInfo,
		"":        statusInfo,
	}
	for severity, want := range cases {
		if got := statusKindFromSeverity(severity); got != want {
			t.Fatalf("statusKindFromSeverity(%q) = %v, want %v", severity, got, want)
		}
	}
}

func TestRenderStatusSections(t *testing.T) {
	snap := &daemonctl.Snapshot{
		Online: true,
		Status: api.DaemonStatus{
			Running:  true,
			InboxDir: "/srv/inbox",
			Workflow: api.WorkflowStatus{QueueStats: map[string]int{"pending": 2}},
		},
		Checks: []api.StatusLine{{Label: "Autopost", Severity: "ok", Detail: "Running"}},
	}
	var buf bytes.Buffer
	renderStatus(&buf, snap, false)
	out := buf.String()
	for _, want := range []string{"== System Status ==", "[OK] Running", "/srv/inbox", "== Queue Status ==", "Pending"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestFormatEvent(t *testing.T) {
	evt := events.Event{
		Time:     time.Date(2026, 3, 4, 5, 6, 7, 0, time.Local),
		Message:  "posted cat.png",
		Severity: events.SeveritySuccess,
	}
	if got := formatEvent(evt, false); got != "05:06:07 [OK]    posted cat.png" {
		t.Fatalf("unexpected event line %q", got)
	}
	failed := formatEvent(events.Event{Message: "upload timed out", Severity: events.SeverityError}, true)
	if !strings.HasPrefix(failed, ansiRed) || !strings.Contains(failed, "--:--:-- [ERROR] upload timed out") {
		t.Fatalf("unexpected colored line %q", failed)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
