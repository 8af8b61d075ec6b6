package api

import (
	"testing"
	"time"

	"autopost/internal/automation"
	"autopost/internal/queue"
	"autopost/internal/workflow"
)

func TestFromJobUsesEffectiveCaption(t *testing.T) {
	created := time.Date(2026, 3, 4, 5, 6, 7, 8_000_000, time.UTC)
	job := &queue.Job{
		ID:              7,
		FileName:        "chapter-12.png",
		MimeType:        "image/png",
		ImageData:       []byte{1, 2, 3},
		CaptionOverride: "extra",
		BatchTemplate:   "regex: chapter-(\\d+)\nChapter \\1",
		DelaySeconds:    3,
		Status:          queue.StatusPending,
		CreatedAt:       created,
	}

	dto := FromJob(job)
	if dto.Caption != "Chapter 12\n\nextra" {
		t.Fatalf("unexpected caption %q", dto.Caption)
	}
	if dto.ImageSize != 3 {
		t.Fatalf("expected size from data, got %d", dto.ImageSize)
	}
	if dto.Status != "pending" {
		t.Fatalf("unexpected status %q", dto.Status)
	}
	if dto.CreatedAt != "2026-03-04T05:06:07.008Z" {
		t.Fatalf("unexpected created at %q", dto.CreatedAt)
	}
	if !ParseTime(dto.CreatedAt).Equal(created) {
		t.Fatalf("ParseTime did not round trip %q", dto.CreatedAt)
	}
	if dto.UpdatedAt != "" {
		t.Fatalf("expected empty updated at, got %q", dto.UpdatedAt)
	}
}

func TestFromJobDefaultsAttachmentName(t *testing.T) {
	dto := FromJob(&queue.Job{ID: 1})
	if dto.FileName != queue.DefaultAttachmentName {
		t.Fatalf("unexpected file name %q", dto.FileName)
	}
	if got := FromJobs(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestFromStatusSummary(t *testing.T) {
	summary := workflow.StatusSummary{
		Running:    true,
		Mode:       workflow.ModeTrigger,
		Retention:  workflow.RetainFailed,
		Armed:      true,
		NextFiring: time.Date(2026, 1, 1, 0, 15, 0, 0, time.UTC),
		InFlight:   &queue.Job{ID: 4, FileName: "a.png", Status: queue.StatusInFlight},
		QueueStats: map[queue.Status]int{queue.StatusPending: 2},
	}
	wf := FromStatusSummary(summary)
	if wf.Mode != "trigger" || wf.Retention != "retain" || !wf.Armed {
		t.Fatalf("unexpected workflow status %+v", wf)
	}
	if wf.InFlight == nil || wf.InFlight.ID != 4 {
		t.Fatalf("expected in-flight job, got %+v", wf.InFlight)
	}
	if wf.QueueStats["pending"] != 2 || wf.QueueStats["failed"] != 0 {
		t.Fatalf("unexpected stats %+v", wf.QueueStats)
	}
	if _, ok := wf.QueueStats["in_flight"]; !ok {
		t.Fatal("expected every status key to be present")
	}
	if wf.NextFiring == "" || wf.LastPosted != "" {
		t.Fatalf("unexpected timestamps %q %q", wf.NextFiring, wf.LastPosted)
	}
}

func TestFromProbe(t *testing.T) {
	if FromProbe(nil) != nil {
		t.Fatal("expected nil for nil probe")
	}
	page := FromProbe(&automation.ProbeResult{Reachable: true, URL: "https://x.com/compose/post"})
	if !page.Reachable || page.URL == "" {
		t.Fatalf("unexpected page status %+v", page)
	}
}
