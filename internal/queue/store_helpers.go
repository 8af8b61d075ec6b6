package queue

import (
	"database/sql"
	"strings"
	"time"
)

const (
	jobColumns     = "id, image_data, length(image_data), mime_type, file_name, caption, batch_id, batch_template, delay_seconds, status, posted, error_message, created_at, updated_at"
	summaryColumns = "id, NULL, length(image_data), mime_type, file_name, caption, batch_id, batch_template, delay_seconds, status, posted, error_message, created_at, updated_at"
)

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id            int64
		imageData     []byte
		imageSize     sql.NullInt64
		mimeType      string
		fileName      sql.NullString
		captionText   sql.NullString
		batchID       sql.NullString
		batchTemplate sql.NullString
		delaySeconds  int
		statusStr     string
		posted        int
		errorMessage  sql.NullString
		createdRaw    string
		updatedRaw    string
	)

	if err := scanner.Scan(
		&id,
		&imageData,
		&imageSize,
		&mimeType,
		&fileName,
		&captionText,
		&batchID,
		&batchTemplate,
		&delaySeconds,
		&statusStr,
		&posted,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	return &Job{
		ID:              id,
		ImageData:       imageData,
		ImageSize:       imageSize.Int64,
		MimeType:        mimeType,
		FileName:        fileName.String,
		CaptionOverride: captionText.String,
		BatchID:         batchID.String,
		BatchTemplate:   batchTemplate.String,
		DelaySeconds:    delaySeconds,
		Status:          Status(statusStr),
		Posted:          posted != 0,
		ErrorMessage:    errorMessage.String,
		CreatedAt:       parseTime(createdRaw),
		UpdatedAt:       parseTime(updatedRaw),
	}, nil
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	defer rows.Close()
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts
	}
	return time.Time{}
}
