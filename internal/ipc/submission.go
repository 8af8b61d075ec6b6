package ipc

import "autopost/internal/workflow"

// NewSubmitRequest converts a workflow submission to its wire form.
func NewSubmitRequest(sub workflow.Submission) SubmitRequest {
	req := SubmitRequest{Template: sub.Template, Items: make([]SubmitItem, 0, len(sub.Items))}
	for _, item := range sub.Items {
		req.Items = append(req.Items, SubmitItem{
			Data:         item.Data,
			MimeType:     item.MimeType,
			FileName:     item.FileName,
			Caption:      item.Caption,
			DelaySeconds: item.DelaySeconds,
		})
	}
	return req
}

// Submission converts the request back to a workflow submission.
func (r SubmitRequest) Submission() workflow.Submission {
	sub := workflow.Submission{Template: r.Template, Items: make([]workflow.SubmitItem, 0, len(r.Items))}
	for _, item := range r.Items {
		sub.Items = append(sub.Items, workflow.SubmitItem{
			Data:         item.Data,
			MimeType:     item.MimeType,
			FileName:     item.FileName,
			Caption:      item.Caption,
			DelaySeconds: item.DelaySeconds,
		})
	}
	return sub
}
