// Package notifications delivers posting milestones via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Enumerated event
// types cover run start, run completion, post failures and a test message so
// the orchestrator can emit consistent messages without duplicating HTTP glue.
//
// Workflow code depends only on the small Service interface.
package notifications
