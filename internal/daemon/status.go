package daemon

import "autopost/internal/api"

// StatusPayload converts a runtime status snapshot to its API representation.
func StatusPayload(status Status) api.DaemonStatus {
	return api.DaemonStatus{
		Running:    status.Running,
		PID:        status.PID,
		QueuePath:  status.QueuePath,
		LockPath:   status.LockPath,
		LogPath:    status.LogPath,
		APIAddress: status.APIAddress,
		InboxDir:   status.InboxDir,
		Workflow:   api.FromStatusSummary(status.Workflow),
		Page:       api.FromProbe(status.Page),
	}
}
