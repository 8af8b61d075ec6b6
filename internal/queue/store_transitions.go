package queue

import (
	"context"
	"fmt"
	"strings"
)

// MarkInFlight flags a job as currently being posted.
func (s *Store) MarkInFlight(ctx context.Context, id int64) error {
	return s.setStatus(ctx, "mark in flight", id, StatusInFlight, "")
}

// MarkPosted records that the page confirmed the post. The job is expected to
// be removed right after; PurgePosted cleans up if that never happens.
func (s *Store) MarkPosted(ctx context.Context, id int64) error {
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, posted = 1, error_message = NULL, updated_at = ? WHERE id = ?`,
		StatusPosted, timestamp(), id,
	); err != nil {
		return storeErr("mark posted", err)
	}
	return nil
}

// MarkFailed records a failed attempt. Failed jobs are never retried automatically.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	return s.setStatus(ctx, "mark failed", id, StatusFailed, message)
}

func (s *Store) setStatus(ctx context.Context, op string, id int64, status Status, message string) error {
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status, nullableString(message), timestamp(), id,
	); err != nil {
		return storeErr(op, err)
	}
	return nil
}

// ResetInFlight returns jobs left in flight by a crash to pending.
func (s *Store) ResetInFlight(ctx context.Context) (int64, error) {
	n, err := s.execAffected(
		ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE status = ? AND posted = 0`,
		StatusPending, timestamp(), StatusInFlight,
	)
	if err != nil {
		return 0, storeErr("reset in flight", err)
	}
	return n, nil
}

// PurgePosted deletes jobs already confirmed as posted.
func (s *Store) PurgePosted(ctx context.Context) (int64, error) {
	n, err := s.execAffected(ctx, `DELETE FROM jobs WHERE posted = 1`)
	if err != nil {
		return 0, storeErr("purge posted", err)
	}
	return n, nil
}

// RequeueFailed moves failed jobs back to pending.
func (s *Store) RequeueFailed(ctx context.Context, ids ...int64) (int64, error) {
	query := `UPDATE jobs SET status = ?, error_message = NULL, updated_at = ? WHERE status = ?`
	args := []any{StatusPending, timestamp(), StatusFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	n, err := s.execAffected(ctx, query, args...)
	if err != nil {
		return 0, storeErr("requeue failed", err)
	}
	return n, nil
}

// UpdateCaption replaces the per-job override of a pending job.
func (s *Store) UpdateCaption(ctx context.Context, id int64, text string) error {
	n, err := s.execAffected(
		ctx,
		`UPDATE jobs SET caption = ?, updated_at = ? WHERE id = ? AND status = ?`,
		nullableString(text), timestamp(), id, StatusPending,
	)
	if err != nil {
		return storeErr("update caption", err)
	}
	if n == 0 {
		return storeErr("update caption", fmt.Errorf("job %d: %w", id, ErrNotPending))
	}
	return nil
}

// UpdateBatchTemplate replaces the caption template of every pending job in a batch.
func (s *Store) UpdateBatchTemplate(ctx context.Context, batchID, template string) (int64, error) {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return 0, storeErr("update batch template", fmt.Errorf("batch id is required"))
	}
	n, err := s.execAffected(
		ctx,
		`UPDATE jobs SET batch_template = ?, updated_at = ? WHERE batch_id = ? AND status = ?`,
		nullableString(template), timestamp(), batchID, StatusPending,
	)
	if err != nil {
		return 0, storeErr("update batch template", err)
	}
	return n, nil
}
