// Package services defines shared utilities consumed by the workflow manager,
// the daemon surfaces, and the automation driver.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, batch IDs, run IDs, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so API and IPC callers can
//     map failures onto consistent response codes.
package services
