// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates internal queue and workflow models into
// transport-friendly DTOs that the CLI and browser UIs can render without
// coupling to internal types.
//
// # Key Types
//
// Job: transport representation of a queued post, including the effective
// caption the next dispatch would use.
//
// WorkflowStatus: drain mode, trigger arming, the in-flight job, and queue stats.
//
// DaemonStatus: aggregated runtime information including the page probe.
//
// StatusLine: a labelled health line rendered by "autopost status".
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript consumers. Internal enums
// (queue.Status, workflow.Mode) are exposed as lowercase strings. Timestamps
// use RFC3339 with milliseconds. Image bytes never cross this layer.
package api
