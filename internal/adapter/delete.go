package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/andrejcermak/ood-core-extension/internal/coder"
)

// Delete tears down a workspace and its credentials. It requests the delete
// transition, polls the workspace until it leaves the "deleting" state or
// the attempt budget runs out, then destroys the bound credentials exactly
// once. Running out of attempts is not an error: the remote delete keeps
// progressing on its own, and leaked credentials are worse than an early
// teardown.
//
// Only a failed delete request, a missing credential binding, or context
// cancellation abort before teardown.
func (a *Adapter) Delete(ctx context.Context, id string) error {
	if err := a.client.DeleteWorkspace(ctx, id); err != nil {
		return fmt.Errorf("requesting delete of workspace %s: %w", id, err)
	}

	creds, err := a.creds.LoadCredentials(ctx, id)
	if err != nil {
		return fmt.Errorf("loading credentials for workspace %s: %w", id, err)
	}

	finalState, err := a.waitForDeletion(ctx, id)
	if err != nil {
		return err
	}
	return a.creds.DestroyCredentials(ctx, creds, finalState, id)
}

// waitForDeletion polls the workspace once per attempt until it is no longer
// deleting. It returns the last observed state; on budget exhaustion that is
// whatever the final read saw. A read that fails with a not-found means the
// remote already purged the record, which counts as deleted. Any other read
// failure consumes the attempt and is retried.
func (a *Adapter) waitForDeletion(ctx context.Context, id string) (string, error) {
	state := "deleting"
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		ws, err := a.client.Workspace(ctx, id)
		switch {
		case err == nil:
			state = ws.State()
			if state != "deleting" {
				return state, nil
			}
		case isGone(err):
			return "deleted", nil
		default:
			slog.Warn("workspace read failed during deletion poll",
				"workspace_id", id,
				"attempt", attempt,
				"error", err,
			)
		}

		if a.onDeleteAttempt != nil {
			a.onDeleteAttempt(attempt)
		}

		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-time.After(a.interval):
		}
	}

	slog.Warn("deletion poll budget exhausted, proceeding to credential teardown",
		"workspace_id", id,
		"attempts", a.maxAttempts,
		"last_observed_state", state,
	)
	return state, nil
}

// isGone reports whether err is a not-found style gateway response.
func isGone(err error) bool {
	var te *coder.TransportError
	return errors.As(err, &te) && te.NotFound()
}
