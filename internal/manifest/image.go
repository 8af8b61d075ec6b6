package manifest

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"autopost/internal/workflow"
)

// ErrNotImage is returned for files whose content is not an image.
var ErrNotImage = errors.New("not an image")

// MaxImageBytes bounds a single image read from disk.
const MaxImageBytes = 64 << 20

// Image is an image file loaded into memory.
type Image struct {
	Path     string
	FileName string
	MimeType string
	Data     []byte
}

// LoadImage reads path and determines its content type. Files that are not
// images are rejected with ErrNotImage.
func LoadImage(path string) (Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Image{}, err
	}
	if info.IsDir() {
		return Image{}, fmt.Errorf("%s: is a directory", path)
	}
	if info.Size() > MaxImageBytes {
		return Image{}, fmt.Errorf("%s: %d bytes exceeds the %d byte limit", path, info.Size(), MaxImageBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, err
	}
	mimeType := DetectMimeType(path, data)
	if !IsImageType(mimeType) {
		return Image{}, fmt.Errorf("%s (%s): %w", path, mimeType, ErrNotImage)
	}
	return Image{
		Path:     path,
		FileName: filepath.Base(path),
		MimeType: mimeType,
		Data:     data,
	}, nil
}

// DetectMimeType sniffs data, falling back to the extension when sniffing
// is inconclusive.
func DetectMimeType(path string, data []byte) string {
	sniffed := stripParams(http.DetectContentType(data))
	if IsImageType(sniffed) {
		return sniffed
	}
	if byExt := stripParams(mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))); IsImageType(byExt) && sniffed == "application/octet-stream" {
		return byExt
	}
	return sniffed
}

// IsImageType reports whether mimeType names an image.
func IsImageType(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}

// IsImagePath reports whether path has a common image extension.
func IsImagePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp":
		return true
	default:
		return false
	}
}

// ReadSidecar returns the caption stored next to imagePath with suffix, for
// example photo.png.txt or photo.txt. A missing sidecar yields "".
func ReadSidecar(imagePath, suffix string) (string, string, error) {
	if suffix == "" {
		return "", "", nil
	}
	candidates := []string{
		imagePath + suffix,
		strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + suffix,
	}
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", "", err
		}
		return strings.TrimSpace(string(data)), candidate, nil
	}
	return "", "", nil
}

// FromPaths loads each path as one submission item sharing caption and
// delay. A nil delay leaves the workflow default in place.
func FromPaths(paths []string, caption string, delaySeconds *int) ([]workflow.SubmitItem, error) {
	items := make([]workflow.SubmitItem, 0, len(paths))
	for _, path := range paths {
		img, err := LoadImage(path)
		if err != nil {
			return nil, err
		}
		items = append(items, img.Item(caption, delaySeconds))
	}
	return items, nil
}

// Item converts the image into a submission item.
func (img Image) Item(caption string, delaySeconds *int) workflow.SubmitItem {
	return workflow.SubmitItem{
		Data:         img.Data,
		MimeType:     img.MimeType,
		FileName:     img.FileName,
		Caption:      caption,
		DelaySeconds: delaySeconds,
	}
}

func stripParams(mimeType string) string {
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	return strings.TrimSpace(mimeType)
}
