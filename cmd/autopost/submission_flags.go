package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"autopost/internal/manifest"
	"autopost/internal/workflow"
)

// submissionFlags collects the flags shared by add and post.
type submissionFlags struct {
	caption      string
	template     string
	manifestPath string
	sidecar      string
	delay        int
}

func (f *submissionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.caption, "caption", "", "Caption override applied to every image")
	cmd.Flags().StringVar(&f.template, "template", "", "Caption template for the batch (first line \"regex: PATTERN\")")
	cmd.Flags().StringVarP(&f.manifestPath, "manifest", "m", "", "YAML manifest describing the batch")
	cmd.Flags().StringVar(&f.sidecar, "sidecar", ".txt", "Suffix of caption sidecar files read when --caption is not set")
	cmd.Flags().IntVar(&f.delay, "delay", 0, "Seconds to wait before each post (defaults to the configured delay)")
}

func (f *submissionFlags) build(cmd *cobra.Command, paths []string) (workflow.Submission, error) {
	if path := strings.TrimSpace(f.manifestPath); path != "" {
		if len(paths) > 0 {
			return workflow.Submission{}, errors.New("pass image files or --manifest, not both")
		}
		m, err := manifest.Load(path)
		if err != nil {
			return workflow.Submission{}, err
		}
		sub, err := m.Submission()
		if err != nil {
			return workflow.Submission{}, err
		}
		if cmd.Flags().Changed("template") {
			sub.Template = f.template
		}
		return sub, nil
	}

	if len(paths) == 0 {
		return workflow.Submission{}, errors.New("no image files given")
	}
	var delay *int
	if cmd.Flags().Changed("delay") {
		if f.delay < 0 {
			return workflow.Submission{}, fmt.Errorf("delay must be non-negative, got %d", f.delay)
		}
		value := f.delay
		delay = &value
	}

	sub := workflow.Submission{Template: f.template, Items: make([]workflow.SubmitItem, 0, len(paths))}
	for _, path := range paths {
		img, err := manifest.LoadImage(path)
		if err != nil {
			return workflow.Submission{}, err
		}
		caption := f.caption
		if !cmd.Flags().Changed("caption") {
			caption, _, err = manifest.ReadSidecar(path, f.sidecar)
			if err != nil {
				return workflow.Submission{}, fmt.Errorf("read caption for %s: %w", path, err)
			}
		}
		sub.Items = append(sub.Items, img.Item(caption, delay))
	}
	return sub, nil
}
