package adapter

import "github.com/andrejcermak/ood-core-extension/pkg/models"

// StateToStatus maps a raw workspace state onto the canonical scheduler
// status vocabulary. The mapping is deliberately lossy: a "failed" workspace
// reports as suspended so the host framework keeps its card visible instead
// of reaping it, and both "deleted" and "stopped" collapse into completed.
// Unknown states, including the empty string, map to undetermined rather
// than erroring.
func StateToStatus(state string) models.Status {
	switch state {
	case "starting":
		return models.StatusQueued
	case "failed":
		return models.StatusSuspended
	case "running":
		return models.StatusRunning
	case "deleted", "stopped":
		return models.StatusCompleted
	default:
		return models.StatusUndetermined
	}
}
