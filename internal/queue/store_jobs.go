package queue

import (
	"context"
	"database/sql"
	"errors"
)

// Put inserts a pending job.
func (s *Store) Put(ctx context.Context, job NewJob) (*Job, error) {
	if err := job.Validate(); err != nil {
		return nil, storeErr("put", err)
	}
	now := timestamp()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            image_data, mime_type, file_name, caption, batch_id, batch_template,
            delay_seconds, status, posted, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		job.ImageData,
		job.MimeType,
		nullableString(job.FileName),
		nullableString(job.CaptionOverride),
		nullableString(job.BatchID),
		nullableString(job.BatchTemplate),
		job.DelaySeconds,
		StatusPending,
		now,
		now,
	)
	if err != nil {
		return nil, storeErr("put", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, storeErr("put", err)
	}
	return s.Get(ctx, id)
}

// Next returns the oldest pending job that has not been posted.
func (s *Store) Next(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? AND posted = 0 ORDER BY id LIMIT 1`,
		StatusPending,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("next", err)
	}
	return job, nil
}

// Get fetches a job by identifier, including its image data.
func (s *Store) Get(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get", err)
	}
	return job, nil
}

// List returns jobs in drain order (or all jobs when no status is provided).
// Image bytes are not loaded; ImageSize reports their length.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + summaryColumns + ` FROM jobs`
	orderClause := ` ORDER BY id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, storeErr("list", err)
	}
	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, storeErr("list", err)
	}
	return jobs, nil
}

// Remove deletes a job. Deleting an unknown id succeeds.
func (s *Store) Remove(ctx context.Context, id int64) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id); err != nil {
		return storeErr("remove", err)
	}
	return nil
}

func (s *Store) RemoveIdle(ctx context.Context, id int64) (bool, error) {
	n, err := s.execAffected(ctx, `DELETE FROM jobs WHERE id = ? AND status != ?`, id, StatusInFlight)
	if err != nil {
		return false, storeErr("remove idle", err)
	}
	return n > 0, nil
}
