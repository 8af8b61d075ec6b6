package testsupport

import (
	"context"
	"testing"

	"autopost/internal/config"
	"autopost/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// PutJob inserts a PNG job with the given file name, override and delay.
func PutJob(t testing.TB, q queue.Queue, fileName, override string, delaySeconds int) *queue.Job {
	t.Helper()

	job, err := q.Put(context.Background(), queue.NewJob{
		ImageData:       PNG(t),
		MimeType:        "image/png",
		FileName:        fileName,
		CaptionOverride: override,
		DelaySeconds:    delaySeconds,
	})
	if err != nil {
		t.Fatalf("queue.Put: %v", err)
	}
	return job
}
