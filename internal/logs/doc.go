// Package logs reads the daemon's run log for "autopost logs" and the IPC
// LogTail call.
//
// Negative offsets return the last N lines; positive offsets read forward and
// can wait for new lines to arrive. Memory stays bounded by the line limit.
package logs
