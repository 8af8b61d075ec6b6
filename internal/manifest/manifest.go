package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"autopost/internal/workflow"
)

// Manifest describes a batch in posting order.
type Manifest struct {
	// Template is the batch caption template; see the caption package for
	// the regex directive syntax.
	Template     string  `yaml:"template"`
	DefaultDelay *int    `yaml:"default_delay_seconds"`
	Items        []Entry `yaml:"items"`

	dir string
}

// Entry is one image of a batch.
type Entry struct {
	File         string `yaml:"file"`
	Caption      string `yaml:"caption"`
	DelaySeconds *int   `yaml:"delay_seconds"`
}

// Load reads and validates a YAML batch file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// Parse decodes a batch description. Relative paths resolve against the
// working directory unless the manifest was loaded from a file.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate rejects manifests that could never be submitted.
func (m *Manifest) Validate() error {
	if len(m.Items) == 0 {
		return errors.New("manifest lists no items")
	}
	if m.DefaultDelay != nil && *m.DefaultDelay < 0 {
		return errors.New("default_delay_seconds must be non-negative")
	}
	for i, entry := range m.Items {
		if strings.TrimSpace(entry.File) == "" {
			return fmt.Errorf("item %d: file is required", i+1)
		}
		if entry.DelaySeconds != nil && *entry.DelaySeconds < 0 {
			return fmt.Errorf("item %d (%s): delay_seconds must be non-negative", i+1, entry.File)
		}
	}
	return nil
}

// Submission loads every image and builds the workflow submission.
func (m *Manifest) Submission() (workflow.Submission, error) {
	sub := workflow.Submission{Template: m.Template}
	for i, entry := range m.Items {
		img, err := LoadImage(m.resolve(entry.File))
		if err != nil {
			return workflow.Submission{}, fmt.Errorf("item %d: %w", i+1, err)
		}
		delay := entry.DelaySeconds
		if delay == nil {
			delay = m.DefaultDelay
		}
		sub.Items = append(sub.Items, img.Item(entry.Caption, delay))
	}
	return sub, nil
}

func (m *Manifest) resolve(file string) string {
	file = strings.TrimSpace(file)
	if strings.HasPrefix(file, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, file[2:])
		}
	}
	if filepath.IsAbs(file) || m.dir == "" {
		return file
	}
	return filepath.Join(m.dir, file)
}
