package manifest_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"autopost/internal/manifest"
	"autopost/internal/testsupport"
)

func TestLoadBuildsSubmissionInOrder(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteImage(t, filepath.Join(dir, "images", "one.png"))
	testsupport.WriteImage(t, filepath.Join(dir, "images", "two.png"))

	content := `
template: |-
  regex: ^(\w+)\.png$
  Today: \1
default_delay_seconds: 7
items:
  - file: images/one.png
    caption: first
    delay_seconds: 2
  - file: images/two.png
`
	path := filepath.Join(dir, "batch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	m, err := manifest.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub, err := m.Submission()
	if err != nil {
		t.Fatalf("Submission: %v", err)
	}
	if sub.Template != "regex: ^(\\w+)\\.png$\nToday: \\1" {
		t.Fatalf("unexpected template %q", sub.Template)
	}
	if len(sub.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(sub.Items))
	}
	first, second := sub.Items[0], sub.Items[1]
	if first.FileName != "one.png" || first.Caption != "first" || *first.DelaySeconds != 2 {
		t.Fatalf("unexpected first item %+v", first)
	}
	if second.FileName != "two.png" || second.DelaySeconds == nil || *second.DelaySeconds != 7 {
		t.Fatalf("expected default delay on second item, got %+v", second)
	}
	if first.MimeType != "image/png" || len(first.Data) == 0 {
		t.Fatalf("expected png payload, got %q (%d bytes)", first.MimeType, len(first.Data))
	}
}

func TestParseRejectsInvalidManifests(t *testing.T) {
	cases := map[string]string{
		"empty":          "template: x\n",
		"missing file":   "items:\n  - caption: hi\n",
		"negative delay": "items:\n  - file: a.png\n    delay_seconds: -1\n",
		"bad default":    "default_delay_seconds: -5\nitems:\n  - file: a.png\n",
		"bad yaml":       "items: [",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := manifest.Parse([]byte(content)); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestLoadImageRejectsNonImages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.png")
	if err := os.WriteFile(path, []byte("just some text"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := manifest.LoadImage(path); !errors.Is(err, manifest.ErrNotImage) {
		t.Fatalf("expected ErrNotImage, got %v", err)
	}

	imgPath := filepath.Join(dir, "ok.bin")
	testsupport.WriteImage(t, imgPath)
	img, err := manifest.LoadImage(imgPath)
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if img.MimeType != "image/png" || img.FileName != "ok.bin" {
		t.Fatalf("expected sniffed png, got %+v", img.MimeType)
	}
}

func TestReadSidecar(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "photo.png")
	testsupport.WriteImage(t, img)

	caption, path, err := manifest.ReadSidecar(img, ".txt")
	if err != nil || caption != "" || path != "" {
		t.Fatalf("expected no sidecar, got %q %q %v", caption, path, err)
	}

	sidecar := filepath.Join(dir, "photo.txt")
	if err := os.WriteFile(sidecar, []byte("  hello world\n"), 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}
	caption, path, err = manifest.ReadSidecar(img, ".txt")
	if err != nil || caption != "hello world" || path != sidecar {
		t.Fatalf("unexpected sidecar result %q %q %v", caption, path, err)
	}
}

func TestFromPaths(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	testsupport.WriteImage(t, a)
	delay := 3
	items, err := manifest.FromPaths([]string{a}, "caption", &delay)
	if err != nil {
		t.Fatalf("FromPaths: %v", err)
	}
	if len(items) != 1 || items[0].Caption != "caption" || *items[0].DelaySeconds != 3 {
		t.Fatalf("unexpected items %+v", items)
	}

	if _, err := manifest.FromPaths([]string{filepath.Join(dir, "missing.png")}, "", nil); err == nil {
		t.Fatal("expected error for missing file")
	}
}
