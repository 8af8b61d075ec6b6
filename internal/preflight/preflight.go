package preflight

import (
	"context"

	"autopost/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Inbox.Enabled {
		results = append(results,
			CheckDirectoryAccess("Inbox directory", cfg.Paths.InboxDir),
			CheckDirectoryAccess("Processed directory", cfg.Inbox.ProcessedDir),
		)
	}
	results = append(results, CheckBrowser(ctx, cfg.Browser.ControlURL, cfg.Browser.Bin))
	results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	return results
}

// Failed filters results down to the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}
