// Package automation drives the compose page that publishes a post.
//
// Driver.Post walks a fixed sequence of steps against a Page: open the tab,
// reveal the composer, insert the caption, attach the image, wait for the
// upload, and submit. Every wait is a bounded AwaitCondition poll and every
// failure comes back as a *DriverError naming the step; nothing panics past
// the Driver boundary. RodBrowser provides the Page implementation on top of
// a Chromium DevTools connection and reuses a single tab across jobs.
package automation
