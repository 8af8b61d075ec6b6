// Package preflight provides readiness checks for the paths and external
// endpoints autopost depends on.
//
// The daemon runs RunAll once at startup and logs failures as warnings so a
// misconfigured data directory or unreachable browser shows up before the
// first post is attempted. The CLI "autopost status" command renders the same
// results in its health table.
//
// Each check is gated by its config toggle. Disabled features pass with a
// "Disabled" detail.
package preflight
