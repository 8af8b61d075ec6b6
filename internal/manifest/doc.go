// Package manifest turns image files and YAML batch descriptions into
// submissions for the posting workflow.
//
// A batch file lists images in posting order with optional per-image
// captions and delays plus a shared caption template. Relative image paths
// resolve against the batch file's directory. Only image payloads are
// accepted; the content type is sniffed when the extension does not settle
// it.
package manifest
