package automation

import "context"

// Attachment is an in-memory image handed to the page's file input.
type Attachment struct {
	Name     string
	MimeType string
	Data     []byte
}

// Page is the set of page capabilities the driver needs. Selectors are CSS.
type Page interface {
	Exists(ctx context.Context, selector string) (bool, error)
	Enabled(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	// InsertText replaces the element's text in one operation.
	InsertText(ctx context.Context, selector, text string) error
	// TypeText enters text one character at a time.
	TypeText(ctx context.Context, selector, text string) error
	// NotifyChange fires input and change events on the element so the
	// page's own state picks up programmatic edits.
	NotifyChange(ctx context.Context, selector string) error
	AttachFile(ctx context.Context, selector string, file Attachment) error
	Location(ctx context.Context) (string, error)
}

// Browser hands out the page that posts are made on. Implementations reuse
// one page for every call while it stays alive.
type Browser interface {
	Acquire(ctx context.Context, targetURL string) (Page, error)
	Close() error
}
