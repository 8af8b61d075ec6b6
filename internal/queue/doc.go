// Package queue persists posting jobs and exposes them in submission order.
//
// Store keeps jobs in an embedded SQLite database (WAL mode, busy retries) so
// queued images survive daemon restarts. MemoryQueue offers the same Queue
// contract without persistence for one-shot batch runs. Both expose a small
// settings table that remembers the caption template and delays chosen by the
// operator.
//
// Jobs move pending -> in_flight -> posted (then removed) or failed. Callers
// recover from crashes with ResetInFlight and PurgePosted on startup.
package queue
