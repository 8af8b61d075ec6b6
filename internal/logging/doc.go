// Package logging builds the zap loggers used by the daemon and CLI.
//
// It owns the console and JSON encoder setup, the standard structured field
// names (job, batch, run and correlation identifiers), helpers that lift those
// identifiers out of a context, and pruning of old per-run log files.
package logging
