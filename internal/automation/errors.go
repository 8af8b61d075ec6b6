package automation

import (
	"errors"
	"fmt"
)

// Kind classifies a driver failure.
type Kind string

const (
	KindTargetUnavailable       Kind = "target_unavailable"
	KindComposeSurfaceNotFound  Kind = "compose_surface_not_found"
	KindAttachmentInputNotFound Kind = "attachment_input_not_found"
	KindSubmitControlNotFound   Kind = "submit_control_not_found"
	// KindPageFault covers page operations that failed after their element
	// was found, and recovered panics.
	KindPageFault Kind = "page_fault"
)

// Step names reported in DriverError.Step and in logs.
const (
	StepAcquireTarget   = "acquire_target"
	StepComposeEntry    = "compose_entry"
	StepComposeSurface  = "compose_surface"
	StepInsertCaption   = "insert_caption"
	StepAttachmentInput = "attachment_input"
	StepAttachImage     = "attach_image"
	StepAwaitUpload     = "await_upload"
	StepSubmitControl   = "submit_control"
	StepSubmit          = "submit"
)

var kindMessages = map[Kind]string{
	KindTargetUnavailable:       "could not open the compose page",
	KindComposeSurfaceNotFound:  "compose text box did not appear",
	KindAttachmentInputNotFound: "image upload input did not appear",
	KindSubmitControlNotFound:   "post button never became available",
	KindPageFault:               "the page rejected an automation step",
}

// DriverError reports which step of a post failed and why.
type DriverError struct {
	Kind Kind
	Step string
	Err  error
}

func (e *DriverError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s at %s", e.Kind, e.Step)
	}
	return fmt.Sprintf("%s at %s: %v", e.Kind, e.Step, e.Err)
}

func (e *DriverError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Summary returns a one-line operator-facing description without internals.
func (e *DriverError) Summary() string {
	if e == nil {
		return ""
	}
	if msg, ok := kindMessages[e.Kind]; ok {
		return msg
	}
	return string(e.Kind)
}

// KindOf returns the driver failure kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var derr *DriverError
	if errors.As(err, &derr) {
		return derr.Kind, true
	}
	return "", false
}

// Summarize renders err for status events: driver errors use their summary,
// anything else its message.
func Summarize(err error) string {
	if err == nil {
		return ""
	}
	var derr *DriverError
	if errors.As(err, &derr) {
		return derr.Summary()
	}
	return err.Error()
}
