package logging

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RetentionTarget selects files in Dir whose names match Pattern. Files in
// Exclude are never removed, and the KeepNewest most recent matches survive
// regardless of age.
type RetentionTarget struct {
	Dir        string
	Pattern    string
	Exclude    []string
	KeepNewest int
}

type logFile struct {
	path    string
	modTime time.Time
}

// CleanupOldLogs removes files older than retentionDays from each target and
// returns how many were removed. A retentionDays value of 0 disables pruning.
func CleanupOldLogs(logger *zap.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	removed := 0
	for _, target := range targets {
		for _, path := range expiredFiles(target, cutoff) {
			if err := os.Remove(path); err != nil {
				WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
					zap.String("path", path),
					zap.Error(err),
					zap.String(FieldErrorHint, "check file permissions and log_dir ownership"),
					zap.String(FieldImpact, "old log file remains on disk"),
				)
				continue
			}
			removed++
			if logger != nil {
				logger.Debug("log pruned", zap.String("path", path), zap.String(FieldEventType, "log_pruned"))
			}
		}
	}
	return removed
}

// expiredFiles lists the files of target modified before cutoff, newest
// first, after exclusions and the KeepNewest allowance are applied.
func expiredFiles(target RetentionTarget, cutoff time.Time) []string {
	dir := strings.TrimSpace(target.Dir)
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	excluded := make(map[string]bool, len(target.Exclude))
	for _, path := range target.Exclude {
		if path = strings.TrimSpace(path); path != "" {
			excluded[absPath(path)] = true
		}
	}
	pattern := strings.TrimSpace(target.Pattern)

	var matches []logFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if pattern != "" {
			if ok, err := filepath.Match(pattern, entry.Name()); err != nil || !ok {
				continue
			}
		}
		path := absPath(filepath.Join(dir, entry.Name()))
		if excluded[path] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		matches = append(matches, logFile{path: path, modTime: info.ModTime()})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].modTime.After(matches[j].modTime) })

	var expired []string
	for i, file := range matches {
		if i < target.KeepNewest || !file.modTime.Before(cutoff) {
			continue
		}
		expired = append(expired, file.path)
	}
	return expired
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
