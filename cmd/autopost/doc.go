// Command autopost is the CLI for the autopost daemon.
//
// It launches and stops the daemon, queues images with captions over the
// daemon's Unix socket, edits and inspects the queue, follows status events
// and logs, and runs one-shot batches without a daemon via "autopost post".
package main
