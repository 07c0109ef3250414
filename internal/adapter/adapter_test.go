package adapter

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/andrejcermak/ood-core-extension/internal/coder"
	"github.com/andrejcermak/ood-core-extension/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fake gateway client ---

type fakeClient struct {
	workspace      *models.Workspace
	workspaceErr   error
	workspaceFn    func(call int) (*models.Workspace, error)
	workspaceCalls int

	createResult *models.Workspace
	createErr    error
	createdOrg   string
	createdReq   *coder.CreateWorkspaceRequest

	deleteErr  error
	deletedIDs []string

	logs    []models.BuildLogEntry
	logsErr error

	listResult []models.Workspace
	listErr    error
	listOwner  string
}

func (f *fakeClient) CreateWorkspace(_ context.Context, orgID string, req coder.CreateWorkspaceRequest) (*models.Workspace, error) {
	f.createdOrg = orgID
	f.createdReq = &req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createResult, nil
}

func (f *fakeClient) Workspace(_ context.Context, _ string) (*models.Workspace, error) {
	f.workspaceCalls++
	if f.workspaceFn != nil {
		return f.workspaceFn(f.workspaceCalls)
	}
	if f.workspaceErr != nil {
		return nil, f.workspaceErr
	}
	return f.workspace, nil
}

func (f *fakeClient) DeleteWorkspace(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

func (f *fakeClient) BuildLogs(_ context.Context, _ string) ([]models.BuildLogEntry, error) {
	if f.logsErr != nil {
		return nil, f.logsErr
	}
	return f.logs, nil
}

func (f *fakeClient) ListWorkspaces(_ context.Context, owner string) ([]models.Workspace, error) {
	f.listOwner = owner
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listResult, nil
}

var _ coder.Client = (*fakeClient)(nil)

// --- fake credential provider ---

type destroyCall struct {
	credentialID string
	state        string
	workspaceID  string
}

type fakeProvider struct {
	creds       *models.Credentials
	generateErr error
	saveErr     error
	loadErr     error
	saved       map[string]*models.Credentials
	destroyed   []destroyCall
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		creds: &models.Credentials{ID: "cred-1", Name: "ood-abc", Secret: "shh"},
		saved: map[string]*models.Credentials{},
	}
}

func (f *fakeProvider) GenerateCredentials(_ context.Context, projectID string) (*models.Credentials, error) {
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	f.creds.ProjectID = projectID
	return f.creds, nil
}

func (f *fakeProvider) SaveCredentials(_ context.Context, workspaceID string, creds *models.Credentials) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[workspaceID] = creds
	return nil
}

func (f *fakeProvider) LoadCredentials(_ context.Context, workspaceID string) (*models.Credentials, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if creds, ok := f.saved[workspaceID]; ok {
		return creds, nil
	}
	return f.creds, nil
}

func (f *fakeProvider) DestroyCredentials(_ context.Context, creds *models.Credentials, lastObservedState, workspaceID string) error {
	f.destroyed = append(f.destroyed, destroyCall{
		credentialID: creds.ID,
		state:        lastObservedState,
		workspaceID:  workspaceID,
	})
	return nil
}

// --- fixtures ---

var testNow = time.Date(2026, 2, 6, 10, 25, 0, 0, time.UTC)

func testWorkspace(state string) *models.Workspace {
	return &models.Workspace{
		ID:        "ws-1",
		Name:      "alice-sandbox-0abc1def",
		OwnerName: "alice",
		CreatedAt: "2026-02-06T10:00:00Z",
		UpdatedAt: "2026-02-06T10:05:00Z",
		LatestBuild: models.Build{
			ID:        "build-1",
			Status:    state,
			UpdatedAt: "2026-02-06T10:15:00Z",
			Resources: []models.Resource{
				{Name: "main_vm"},
				{
					Name: "coder_output",
					Metadata: []models.ResourceMetadata{
						{Key: "floating_ip", Value: "147.251.9.30"},
						{Key: "instance_id", Value: "inst-42"},
					},
				},
			},
		},
	}
}

func newTestAdapter(client *fakeClient, provider *fakeProvider, opts Options) *Adapter {
	if opts.Username == "" {
		opts.Username = "alice"
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return testNow }
	}
	if opts.DeletionInterval == 0 {
		opts.DeletionInterval = time.Millisecond
	}
	return New(client, provider, opts)
}

// --- Info / Status ---

func TestInfo_RunningWorkspace(t *testing.T) {
	client := &fakeClient{
		workspace: testWorkspace("running"),
		logs: []models.BuildLogEntry{
			{Output: "agent ready"},
			{Output: `error: {"message": "slow volume attach"}`},
		},
	}
	a := newTestAdapter(client, newFakeProvider(), Options{})

	info, err := a.Info(context.Background(), "ws-1")
	require.NoError(t, err)

	assert.Equal(t, "ws-1", info.ID)
	assert.Equal(t, "alice-sandbox-0abc1def", info.JobName)
	assert.Equal(t, "alice", info.JobOwner)
	assert.Equal(t, models.StatusRunning, info.Status)
	assert.Equal(t, "147.251.9.30", info.ConnectionInfo.Host)
	assert.Equal(t, 80, info.ConnectionInfo.Port)
	assert.Equal(t, [][]string{{"slow volume attach"}}, info.ConnectionInfo.ErrorLogs)
	assert.Equal(t, "inst-42", info.Native["instance_id"])

	// last change at 10:05, clock pinned at 10:25
	assert.Equal(t, int64(20*60), info.WallclockTime)
}

func TestInfo_WallclockFrozenForDeleted(t *testing.T) {
	client := &fakeClient{workspace: testWorkspace("deleted")}
	a := newTestAdapter(client, newFakeProvider(), Options{})

	info, err := a.Info(context.Background(), "ws-1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, info.Status)
	// frozen at the final build timestamp: 10:15 - 10:05
	assert.Equal(t, int64(10*60), info.WallclockTime)
}

func TestInfo_StoppedKeepsAccruing(t *testing.T) {
	client := &fakeClient{workspace: testWorkspace("stopped")}
	a := newTestAdapter(client, newFakeProvider(), Options{})

	info, err := a.Info(context.Background(), "ws-1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, info.Status)
	assert.Equal(t, int64(20*60), info.WallclockTime)
}

func TestInfo_MalformedTimestamp(t *testing.T) {
	ws := testWorkspace("running")
	ws.UpdatedAt = "not-a-timestamp"
	client := &fakeClient{workspace: ws}
	a := newTestAdapter(client, newFakeProvider(), Options{})

	_, err := a.Info(context.Background(), "ws-1")
	assert.ErrorIs(t, err, ErrMalformedTimestamp)
}

func TestInfo_MissingOutputResource(t *testing.T) {
	ws := testWorkspace("running")
	ws.LatestBuild.Resources = []models.Resource{{Name: "main_vm"}}
	client := &fakeClient{workspace: ws}
	a := newTestAdapter(client, newFakeProvider(), Options{})

	info, err := a.Info(context.Background(), "ws-1")
	require.NoError(t, err)

	assert.Empty(t, info.ConnectionInfo.Host)
	assert.NotNil(t, info.Native)
	assert.Empty(t, info.Native)
}

func TestInfo_BuildLogsFailure(t *testing.T) {
	client := &fakeClient{
		workspace: testWorkspace("running"),
		logsErr:   errors.New("logs endpoint down"),
	}
	a := newTestAdapter(client, newFakeProvider(), Options{})

	_, err := a.Info(context.Background(), "ws-1")
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	client := &fakeClient{workspace: testWorkspace("starting")}
	a := newTestAdapter(client, newFakeProvider(), Options{})

	status, err := a.Status(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, status)
}

// --- listing ---

func TestInfoWhereOwner_PassesOwnerFilter(t *testing.T) {
	client := &fakeClient{listResult: []models.Workspace{*testWorkspace("running")}}
	a := newTestAdapter(client, newFakeProvider(), Options{})

	infos, err := a.InfoWhereOwner(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, "alice", client.listOwner)
	require.Len(t, infos, 1)
	assert.Equal(t, "ws-1", infos[0].ID)
}

func TestInfoAllEach_StopsEarly(t *testing.T) {
	first := *testWorkspace("running")
	second := *testWorkspace("running")
	second.ID = "ws-2"
	client := &fakeClient{listResult: []models.Workspace{first, second}}
	a := newTestAdapter(client, newFakeProvider(), Options{})

	var seen []string
	err := a.InfoAllEach(context.Background(), func(info models.JobInfo) bool {
		seen = append(seen, info.ID)
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ws-1"}, seen)
}

// --- Submit ---

func TestSubmit_ComposesNameAndParameters(t *testing.T) {
	client := &fakeClient{createResult: testWorkspace("starting")}
	provider := newFakeProvider()
	a := newTestAdapter(client, provider, Options{
		Username:     "alice",
		SuffixSource: func() string { return "0abc1def" },
	})

	id, err := a.Submit(context.Background(), SubmitRequest{
		OrgID:             "org-1",
		ProjectID:         "proj-7",
		TemplateVersionID: "tv-9",
		WorkspaceName:     "sandbox",
		Parameters:        map[string]string{"flavor": "hpc.8core", "image": "debian-12"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ws-1", id)

	require.NotNil(t, client.createdReq)
	assert.Equal(t, "org-1", client.createdOrg)
	assert.Equal(t, "tv-9", client.createdReq.TemplateVersionID)
	assert.Equal(t, "alice-sandbox-0abc1def", client.createdReq.Name)

	assert.Equal(t, []coder.RichParameter{
		{Name: "application_credential_name", Value: "ood-abc"},
		{Name: "application_credential_id", Value: "cred-1"},
		{Name: "application_credential_secret", Value: "shh"},
		{Name: "project_id", Value: "proj-7"},
		{Name: "flavor", Value: "hpc.8core"},
		{Name: "image", Value: "debian-12"},
	}, client.createdReq.RichParameterValues)

	require.Contains(t, provider.saved, "ws-1")
	assert.Equal(t, "proj-7", provider.saved["ws-1"].ProjectID)
}

func TestSubmit_CredentialFailureAbortsBeforeCreate(t *testing.T) {
	client := &fakeClient{createResult: testWorkspace("starting")}
	provider := newFakeProvider()
	provider.generateErr = errors.New("keystone down")
	a := newTestAdapter(client, provider, Options{})

	_, err := a.Submit(context.Background(), SubmitRequest{ProjectID: "proj-7"})
	require.Error(t, err)
	assert.Nil(t, client.createdReq)
}

func TestSubmit_CreateFailureSkipsBinding(t *testing.T) {
	client := &fakeClient{createErr: errors.New("template gone")}
	provider := newFakeProvider()
	a := newTestAdapter(client, provider, Options{})

	_, err := a.Submit(context.Background(), SubmitRequest{ProjectID: "proj-7"})
	require.Error(t, err)
	assert.Empty(t, provider.saved)
}

// --- Delete ---

func TestDelete_PollsUntilStateChanges(t *testing.T) {
	// Two reads still deleting, the third sees the workspace gone.
	client := &fakeClient{
		workspaceFn: func(call int) (*models.Workspace, error) {
			if call < 3 {
				return testWorkspace("deleting"), nil
			}
			return testWorkspace("deleted"), nil
		},
	}
	provider := newFakeProvider()

	var attempts []int
	a := newTestAdapter(client, provider, Options{
		DeletionMaxAttempts: 5,
		OnDeleteAttempt:     func(attempt int) { attempts = append(attempts, attempt) },
	})

	require.NoError(t, a.Delete(context.Background(), "ws-1"))

	assert.Equal(t, []string{"ws-1"}, client.deletedIDs)
	assert.Equal(t, 3, client.workspaceCalls)
	assert.Equal(t, []int{1, 2}, attempts)

	require.Len(t, provider.destroyed, 1)
	assert.Equal(t, "deleted", provider.destroyed[0].state)
	assert.Equal(t, "ws-1", provider.destroyed[0].workspaceID)
}

func TestDelete_BudgetExhaustedStillTearsDown(t *testing.T) {
	client := &fakeClient{workspace: testWorkspace("deleting")}
	provider := newFakeProvider()
	a := newTestAdapter(client, provider, Options{DeletionMaxAttempts: 3})

	require.NoError(t, a.Delete(context.Background(), "ws-1"))

	assert.Equal(t, 3, client.workspaceCalls)
	require.Len(t, provider.destroyed, 1)
	assert.Equal(t, "deleting", provider.destroyed[0].state)
}

func TestDelete_NotFoundCountsAsDeleted(t *testing.T) {
	client := &fakeClient{
		workspaceErr: &coder.TransportError{StatusCode: http.StatusNotFound},
	}
	provider := newFakeProvider()
	a := newTestAdapter(client, provider, Options{DeletionMaxAttempts: 5})

	require.NoError(t, a.Delete(context.Background(), "ws-1"))

	assert.Equal(t, 1, client.workspaceCalls)
	require.Len(t, provider.destroyed, 1)
	assert.Equal(t, "deleted", provider.destroyed[0].state)
}

func TestDelete_TransientReadErrorRetried(t *testing.T) {
	client := &fakeClient{
		workspaceFn: func(call int) (*models.Workspace, error) {
			if call == 1 {
				return nil, errors.New("connection reset")
			}
			return testWorkspace("deleted"), nil
		},
	}
	provider := newFakeProvider()
	a := newTestAdapter(client, provider, Options{DeletionMaxAttempts: 5})

	require.NoError(t, a.Delete(context.Background(), "ws-1"))

	assert.Equal(t, 2, client.workspaceCalls)
	require.Len(t, provider.destroyed, 1)
}

func TestDelete_RequestFailureSkipsTeardown(t *testing.T) {
	client := &fakeClient{deleteErr: errors.New("forbidden")}
	provider := newFakeProvider()
	a := newTestAdapter(client, provider, Options{})

	err := a.Delete(context.Background(), "ws-1")
	require.Error(t, err)
	assert.Empty(t, provider.destroyed)
}

func TestDelete_MissingBindingSkipsTeardown(t *testing.T) {
	client := &fakeClient{workspace: testWorkspace("deleted")}
	provider := newFakeProvider()
	provider.loadErr = errors.New("no binding")
	a := newTestAdapter(client, provider, Options{})

	err := a.Delete(context.Background(), "ws-1")
	require.Error(t, err)
	assert.Empty(t, provider.destroyed)
}

func TestDelete_ContextCancelledBetweenPolls(t *testing.T) {
	client := &fakeClient{workspace: testWorkspace("deleting")}
	provider := newFakeProvider()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := newTestAdapter(client, provider, Options{
		DeletionMaxAttempts: 5,
		DeletionInterval:    time.Hour,
	})

	err := a.Delete(ctx, "ws-1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, provider.destroyed)
}
