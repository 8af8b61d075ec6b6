package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"autopost/internal/api"
	"autopost/internal/queue"
)

const captionPreviewRunes = 48

var titleCaser = cases.Title(language.English)

// statusLabel renders a status like "in_flight" as "In Flight".
func statusLabel(status string) string {
	return titleCaser.String(strings.ReplaceAll(status, "_", " "))
}

func buildQueueStatusRows(stats map[string]int) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, status := range queue.AllStatuses() {
		count := stats[string(status)]
		if count == 0 {
			continue
		}
		rows = append(rows, []string{statusLabel(string(status)), strconv.Itoa(count)})
	}
	return rows
}

func buildJobRows(jobs []api.Job, now time.Time) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			statusLabel(job.Status),
			job.FileName,
			humanize.Bytes(uint64(max(job.ImageSize, 0))),
			fmt.Sprintf("%ds", job.DelaySeconds),
			relativeTime(job.CreatedAt, now),
			previewCaption(job.Caption, captionPreviewRunes),
		})
	}
	return rows
}

func describeJob(job api.Job, now time.Time) [][]string {
	rows := [][]string{
		{"ID", strconv.FormatInt(job.ID, 10)},
		{"Status", statusLabel(job.Status)},
		{"File", job.FileName},
		{"Type", job.MimeType},
		{"Size", humanize.Bytes(uint64(max(job.ImageSize, 0)))},
		{"Delay", fmt.Sprintf("%ds", job.DelaySeconds)},
		{"Queued", relativeTime(job.CreatedAt, now)},
	}
	if job.BatchID != "" {
		rows = append(rows, []string{"Batch", job.BatchID})
	}
	if job.BatchTemplate != "" {
		rows = append(rows, []string{"Template", job.BatchTemplate})
	}
	if job.CaptionOverride != "" {
		rows = append(rows, []string{"Override", job.CaptionOverride})
	}
	rows = append(rows, []string{"Caption", job.Caption})
	if job.ErrorMessage != "" {
		rows = append(rows, []string{"Error", job.ErrorMessage})
	}
	return rows
}

func relativeTime(value string, now time.Time) string {
	t := api.ParseTime(value)
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// previewCaption shows the first line of a caption, cut to limit runes.
func previewCaption(text string, limit int) string {
	line, _, multi := strings.Cut(strings.TrimSpace(text), "\n")
	line = strings.TrimSpace(line)
	runes := []rune(line)
	switch {
	case line == "":
		return "-"
	case len(runes) > limit:
		return string(runes[:limit-1]) + "…"
	case multi:
		return line + " …"
	default:
		return line
	}
}
