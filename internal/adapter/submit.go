package adapter

import (
	"context"
	"fmt"
	"sort"

	"github.com/andrejcermak/ood-core-extension/internal/coder"
	"github.com/andrejcermak/ood-core-extension/pkg/models"
)

// SubmitRequest carries everything needed to provision one workspace.
type SubmitRequest struct {
	OrgID             string
	ProjectID         string
	TemplateVersionID string
	WorkspaceName     string

	// Parameters are template-specific values passed through verbatim.
	Parameters map[string]string
}

// Submit provisions a new workspace: it generates fresh credentials, creates
// the workspace with those credentials injected as template parameters, and
// persists the workspace-to-credential binding for later teardown.
//
// If the create call fails the generated credentials are left in place; the
// identity service expires unused application credentials on its own, and an
// eager revoke here could race a create that actually went through.
func (a *Adapter) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	creds, err := a.creds.GenerateCredentials(ctx, req.ProjectID)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s-%s-%s", a.username, req.WorkspaceName, a.suffix())

	ws, err := a.client.CreateWorkspace(ctx, req.OrgID, coder.CreateWorkspaceRequest{
		TemplateVersionID:   req.TemplateVersionID,
		Name:                name,
		RichParameterValues: richParameters(req, creds),
	})
	if err != nil {
		return "", fmt.Errorf("creating workspace %q: %w", name, err)
	}

	if err := a.creds.SaveCredentials(ctx, ws.ID, creds); err != nil {
		return "", err
	}
	return ws.ID, nil
}

// richParameters builds the template parameter list: the credential triple
// and project id first, then the caller's parameters in key order.
func richParameters(req SubmitRequest, creds *models.Credentials) []coder.RichParameter {
	params := []coder.RichParameter{
		{Name: "application_credential_name", Value: creds.Name},
		{Name: "application_credential_id", Value: creds.ID},
		{Name: "application_credential_secret", Value: creds.Secret},
		{Name: "project_id", Value: req.ProjectID},
	}

	keys := make([]string, 0, len(req.Parameters))
	for k := range req.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		params = append(params, coder.RichParameter{Name: k, Value: req.Parameters[k]})
	}
	return params
}
