// Package events buffers the status events the posting orchestrator emits.
//
// Hub keeps a bounded ring of recent events, assigns each a sequence number,
// and lets clients long-poll for anything newer than the last sequence they
// saw. The CLI watch command and the HTTP API both read from the same hub.
package events
