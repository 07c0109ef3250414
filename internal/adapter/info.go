package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/andrejcermak/ood-core-extension/pkg/models"
)

const (
	// outputResourceName is the agent resource whose metadata carries
	// template outputs back to the adapter.
	outputResourceName = "coder_output"

	floatingIPKey  = "floating_ip"
	connectionPort = 80
)

// buildInfo assembles the normalized job record for one workspace, fetching
// its build logs to surface provisioner errors.
func (a *Adapter) buildInfo(ctx context.Context, ws *models.Workspace) (models.JobInfo, error) {
	state := ws.State()

	logs, err := a.client.BuildLogs(ctx, ws.LatestBuild.ID)
	if err != nil {
		return models.JobInfo{}, fmt.Errorf("fetching build logs for workspace %s: %w", ws.ID, err)
	}

	submitted, err := parseTimestamp(ws.CreatedAt)
	if err != nil {
		return models.JobInfo{}, err
	}
	dispatched, err := parseTimestamp(ws.UpdatedAt)
	if err != nil {
		return models.JobInfo{}, err
	}
	wallclock, err := a.wallclockSeconds(dispatched, state, ws.LatestBuild.UpdatedAt)
	if err != nil {
		return models.JobInfo{}, err
	}

	native := outputMetadata(ws)

	return models.JobInfo{
		ID:             ws.ID,
		JobName:        ws.Name,
		JobOwner:       ws.OwnerName,
		Status:         StateToStatus(state),
		SubmissionTime: submitted,
		DispatchTime:   dispatched,
		WallclockTime:  wallclock,
		ConnectionInfo: models.ConnectionInfo{
			Host:      native[floatingIPKey],
			Port:      connectionPort,
			ErrorLogs: ExtractErrorMessages(logs),
		},
		Native: native,
	}, nil
}

// wallclockSeconds measures elapsed time since the workspace last changed.
// Only a workspace the remote reports as "deleted" gets a frozen end time
// (the final build's timestamp); every other state, "stopped" included,
// keeps accruing against the current clock.
func (a *Adapter) wallclockSeconds(dispatched time.Time, state, buildUpdatedAt string) (int64, error) {
	end := a.now()
	if state == "deleted" {
		frozen, err := parseTimestamp(buildUpdatedAt)
		if err != nil {
			return 0, err
		}
		end = frozen
	}
	return end.Unix() - dispatched.Unix(), nil
}

// outputMetadata flattens the coder_output resource's metadata into a map.
// Later duplicate keys win. The map is never nil.
func outputMetadata(ws *models.Workspace) map[string]string {
	out := map[string]string{}
	for _, res := range ws.LatestBuild.Resources {
		if res.Name != outputResourceName {
			continue
		}
		for _, item := range res.Metadata {
			out[item.Key] = item.Value
		}
	}
	return out
}

func parseTimestamp(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, raw)
	}
	return t, nil
}
