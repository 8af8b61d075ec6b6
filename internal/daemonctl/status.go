package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"autopost/internal/api"
	"autopost/internal/config"
	"autopost/internal/preflight"
	"autopost/internal/queue"
)

const offlineQueryTimeout = 2 * time.Second

// Snapshot is everything "autopost status" renders.
type Snapshot struct {
	Online bool
	Status api.DaemonStatus
	Checks []api.StatusLine
}

// BuildStatusSnapshot collects daemon status, falling back to reading the
// queue database directly when the daemon is offline.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config, probe bool) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snap := &Snapshot{}

	if client, err := Connect(cfg.SocketPath()); err == nil {
		status, statusErr := client.Status(probe)
		_ = client.Close()
		if statusErr == nil {
			snap.Online = true
			snap.Status = *status
		}
	}

	if !snap.Online {
		snap.Status = offlineStatus(ctx, cfg)
	}
	snap.Checks = BuildSystemChecks(ctx, cfg, snap)
	return snap, nil
}

func offlineStatus(ctx context.Context, cfg *config.Config) api.DaemonStatus {
	status := api.DaemonStatus{
		QueuePath: cfg.QueuePath(),
		LockPath:  cfg.LockPath(),
		Workflow: api.WorkflowStatus{
			Mode:       cfg.Posting.Mode,
			Retention:  cfg.Posting.FailureRetention,
			QueueStats: api.MergeQueueStats(nil),
		},
	}
	if cfg.Posting.Store == config.StoreMemory {
		status.QueuePath = "memory"
		return status
	}
	if _, err := os.Stat(cfg.QueuePath()); err != nil {
		return status
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return status
	}
	defer store.Close()

	queryCtx, cancel := context.WithTimeout(ctx, offlineQueryTimeout)
	defer cancel()
	if stats, err := store.Stats(queryCtx); err == nil {
		status.Workflow.QueueStats = api.MergeQueueStats(stats)
	}
	return status
}

// BuildSystemChecks resolves status lines that combine runtime state and
// preflight checks.
func BuildSystemChecks(ctx context.Context, cfg *config.Config, snap *Snapshot) []api.StatusLine {
	lines := make([]api.StatusLine, 0, 8)
	wf := snap.Status.Workflow
	if snap.Online && snap.Status.Running {
		lines = append(lines, api.StatusLine{Label: "Autopost", Severity: "ok", Detail: fmt.Sprintf("Running (pid %d)", snap.Status.PID)})
	} else if snap.Online {
		lines = append(lines, api.StatusLine{Label: "Autopost", Severity: "warn", Detail: "Process up but workflow stopped (run `autopost start`)"})
	} else {
		lines = append(lines, api.StatusLine{Label: "Autopost", Severity: "warn", Detail: "Not running (run `autopost start`)"})
	}

	lines = append(lines, workflowLine(wf))
	if wf.LastError != "" {
		lines = append(lines, api.StatusLine{Label: "Last Error", Severity: "error", Detail: wf.LastError})
	}
	if page := snap.Status.Page; page != nil {
		if page.Reachable {
			lines = append(lines, api.StatusLine{Label: "Compose Page", Severity: "ok", Detail: page.URL})
		} else {
			lines = append(lines, api.StatusLine{Label: "Compose Page", Severity: "error", Detail: page.Error})
		}
	}

	for _, result := range preflight.RunAll(ctx, cfg) {
		lines = append(lines, lineForCheck(result))
	}
	return lines
}

func workflowLine(wf api.WorkflowStatus) api.StatusLine {
	line := api.StatusLine{Label: "Workflow", Severity: "info"}
	switch {
	case wf.InFlight != nil:
		line.Severity = "ok"
		line.Detail = fmt.Sprintf("Posting %s (job %d)", wf.InFlight.FileName, wf.InFlight.ID)
	case wf.Armed && wf.NextFiring != "":
		line.Severity = "ok"
		line.Detail = fmt.Sprintf("%s mode, next post at %s", wf.Mode, api.ParseTime(wf.NextFiring).Local().Format(time.Kitchen))
	case wf.PendingRuns > 0:
		line.Severity = "ok"
		line.Detail = fmt.Sprintf("%s mode, %d run(s) scheduled", wf.Mode, wf.PendingRuns)
	default:
		line.Detail = fmt.Sprintf("%s mode, idle", wf.Mode)
	}
	return line
}

func lineForCheck(result preflight.Result) api.StatusLine {
	line := api.StatusLine{Label: result.Name, Detail: result.Detail}
	switch {
	case result.Passed && strings.EqualFold(strings.TrimSpace(result.Detail), "Disabled"):
		line.Severity = "info"
	case result.Passed:
		line.Severity = "ok"
	case strings.HasSuffix(result.Name, "directory"):
		line.Severity = "error"
	default:
		line.Severity = "warn"
	}
	return line
}
