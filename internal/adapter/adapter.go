// Package adapter presents batch-scheduler lifecycle semantics
// (submit/info/delete/status) over remote Coder workspaces.
package adapter

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/andrejcermak/ood-core-extension/internal/coder"
	"github.com/andrejcermak/ood-core-extension/internal/credentials"
	"github.com/andrejcermak/ood-core-extension/pkg/models"
)

// ErrMalformedTimestamp indicates a workspace or build timestamp could not
// be parsed. It always propagates; timing fields are never defaulted to zero.
var ErrMalformedTimestamp = errors.New("malformed timestamp")

const (
	defaultDeletionMaxAttempts = 5
	defaultDeletionInterval    = 10 * time.Second

	// nameSuffixSpace is 36^8, large enough that generated workspace-name
	// suffixes never collide at any realistic submission rate.
	nameSuffixSpace = 2_821_109_907_456
)

// Options configures an Adapter. Zero values fall back to defaults; Username
// has no default and must be supplied by the caller (the process user is
// resolved once at startup, never looked up lazily).
type Options struct {
	Username            string
	DeletionMaxAttempts int
	DeletionInterval    time.Duration

	// Clock and SuffixSource exist so tests can pin time and name
	// generation; production code leaves them nil.
	Clock        func() time.Time
	SuffixSource func() string

	// OnDeleteAttempt is invoked with the 1-based attempt number each time
	// the deletion poll loop observes the workspace still deleting.
	OnDeleteAttempt func(attempt int)
}

// Adapter implements the lifecycle operations the host job-management
// framework expects. It is safe for concurrent use across distinct workspace
// ids; concurrent operations on the same id are governed by the remote
// service's own consistency guarantees.
type Adapter struct {
	client coder.Client
	creds  credentials.Provider

	username        string
	maxAttempts     int
	interval        time.Duration
	now             func() time.Time
	suffix          func() string
	onDeleteAttempt func(attempt int)
}

// New creates an Adapter over the given gateway client and credential provider.
func New(client coder.Client, creds credentials.Provider, opts Options) *Adapter {
	a := &Adapter{
		client:          client,
		creds:           creds,
		username:        opts.Username,
		maxAttempts:     opts.DeletionMaxAttempts,
		interval:        opts.DeletionInterval,
		now:             opts.Clock,
		suffix:          opts.SuffixSource,
		onDeleteAttempt: opts.OnDeleteAttempt,
	}
	if a.maxAttempts <= 0 {
		a.maxAttempts = defaultDeletionMaxAttempts
	}
	if a.interval <= 0 {
		a.interval = defaultDeletionInterval
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.suffix == nil {
		a.suffix = randomSuffix
	}
	return a
}

// randomSuffix returns a base36 suffix drawn from [0, 36^8).
func randomSuffix() string {
	return strconv.FormatInt(rand.Int64N(nameSuffixSpace), 36)
}

// Info returns the normalized job record for one workspace. The record is
// built fresh on every call.
func (a *Adapter) Info(ctx context.Context, id string) (models.JobInfo, error) {
	ws, err := a.client.Workspace(ctx, id)
	if err != nil {
		return models.JobInfo{}, err
	}
	return a.buildInfo(ctx, ws)
}

// Status returns the canonical status of one workspace.
func (a *Adapter) Status(ctx context.Context, id string) (models.Status, error) {
	info, err := a.Info(ctx, id)
	if err != nil {
		return "", err
	}
	return info.Status, nil
}

// InfoAll returns job records for every workspace visible to the adapter.
func (a *Adapter) InfoAll(ctx context.Context) ([]models.JobInfo, error) {
	return a.infoList(ctx, "")
}

// InfoWhereOwner returns job records for workspaces owned by owner.
func (a *Adapter) InfoWhereOwner(ctx context.Context, owner string) ([]models.JobInfo, error) {
	return a.infoList(ctx, owner)
}

// InfoAllEach calls fn for each workspace's job record, stopping early when
// fn returns false.
func (a *Adapter) InfoAllEach(ctx context.Context, fn func(models.JobInfo) bool) error {
	return a.infoEach(ctx, "", fn)
}

// InfoWhereOwnerEach calls fn for each of owner's job records, stopping
// early when fn returns false.
func (a *Adapter) InfoWhereOwnerEach(ctx context.Context, owner string, fn func(models.JobInfo) bool) error {
	return a.infoEach(ctx, owner, fn)
}

func (a *Adapter) infoList(ctx context.Context, owner string) ([]models.JobInfo, error) {
	workspaces, err := a.client.ListWorkspaces(ctx, owner)
	if err != nil {
		return nil, err
	}

	infos := make([]models.JobInfo, 0, len(workspaces))
	for i := range workspaces {
		info, err := a.buildInfo(ctx, &workspaces[i])
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (a *Adapter) infoEach(ctx context.Context, owner string, fn func(models.JobInfo) bool) error {
	workspaces, err := a.client.ListWorkspaces(ctx, owner)
	if err != nil {
		return err
	}

	for i := range workspaces {
		info, err := a.buildInfo(ctx, &workspaces[i])
		if err != nil {
			return err
		}
		if !fn(info) {
			return nil
		}
	}
	return nil
}
