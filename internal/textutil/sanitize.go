package textutil

import (
	"path/filepath"
	"strings"
	"unicode"
)

// maxFileNameRunes keeps staged names well under common filesystem limits.
const maxFileNameRunes = 120

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName reduces name to a single safe path element. Directory
// parts are dropped, unsafe characters replaced, control characters removed
// and long names shortened while keeping the extension. It returns "" when
// nothing usable remains.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(fileNameReplacer.Replace(name))
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return ""
	}
	runes := []rune(name)
	if len(runes) <= maxFileNameRunes {
		return name
	}
	ext := []rune(filepath.Ext(name))
	if len(ext) >= maxFileNameRunes {
		ext = nil
	}
	stem := runes[:maxFileNameRunes-len(ext)]
	return string(stem) + string(ext)
}
