// Package workflow drains the posting queue through the page automation
// driver.
//
// The Manager runs in one of two modes. In trigger mode a recurring ticker
// posts one pending job per firing and disarms itself once the queue is
// empty; new submissions re-arm it. In batch mode each submission becomes a
// run that posts its jobs back to back, waiting each job's delay before the
// next one starts, and aborting the remainder of the run on the first
// failure.
//
// Only one job is ever in flight. Every job and every run outcome is
// published to the events hub so clients can follow progress after the
// immediate submit acknowledgement. The failure retention policy decides
// whether failed jobs are kept for retry or dropped.
package workflow
