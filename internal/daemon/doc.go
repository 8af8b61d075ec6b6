// Package daemon coordinates the long-running autopost process.
//
// It wires configuration, the job queue, the workflow manager, and the
// browser driver into a single lifecycle with flock-based locking so only one
// process ever drives the compose tab. Around that core it runs the optional
// HTTP API used by browser UIs and the inbox watcher that turns images dropped
// into a folder into queued jobs.
//
// Keep orchestration here. Posting behaviour lives in workflow, page steps in
// automation, and persistence in queue; the daemon focuses on startup,
// shutdown, and exposing those packages to clients.
package daemon
