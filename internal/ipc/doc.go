// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// The server owns the socket file and removes it on Close. Request and
// response types are shared by both sides; job and status payloads reuse the
// api DTOs so the CLI renders the same shapes the HTTP API returns. Image
// bytes travel base64-encoded inside SubmitRequest.
package ipc
