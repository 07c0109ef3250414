package coder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/andrejcermak/ood-core-extension/pkg/models"
)

// Sentinel errors for Coder client failures.
var (
	ErrCoderUnreachable = errors.New("coder unreachable")
	ErrCoderTimeout     = errors.New("coder request timeout")
	ErrInvalidMethod    = errors.New("invalid HTTP method")
)

// TransportError is returned for any non-2xx response from the Coder API.
// It keeps the request body so that provisioning failures can be diagnosed
// from the error alone.
type TransportError struct {
	StatusCode   int
	Reason       string
	Endpoint     string
	RequestBody  string
	ResponseBody string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s for request %s and body %s",
		e.StatusCode, e.Reason, e.Endpoint, e.RequestBody)
}

// NotFound reports whether the remote side says the resource is gone.
func (e *TransportError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone
}

// Client is the interface the lifecycle orchestrators use to talk to the
// workspace-provisioning service. Test doubles must implement it fully.
type Client interface {
	CreateWorkspace(ctx context.Context, orgID string, req CreateWorkspaceRequest) (*models.Workspace, error)
	Workspace(ctx context.Context, id string) (*models.Workspace, error)
	DeleteWorkspace(ctx context.Context, id string) error
	BuildLogs(ctx context.Context, buildID string) ([]models.BuildLogEntry, error)
	ListWorkspaces(ctx context.Context, owner string) ([]models.Workspace, error)
}

// RichParameter is one name/value pair passed to the workspace template.
type RichParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CreateWorkspaceRequest is the provisioning request body.
type CreateWorkspaceRequest struct {
	TemplateVersionID   string          `json:"template_version_id"`
	Name                string          `json:"name"`
	RichParameterValues []RichParameter `json:"rich_parameter_values"`
}

// HTTPClient implements Client using the Coder v2 HTTP API.
type HTTPClient struct {
	host        string
	token       string
	serviceUser string
	client      *http.Client
}

// NewHTTPClient creates a new Coder HTTP client. Workspaces are created on
// behalf of serviceUser.
func NewHTTPClient(host, token, serviceUser string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		host:        host,
		token:       token,
		serviceUser: serviceUser,
		client:      &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) CreateWorkspace(ctx context.Context, orgID string, req CreateWorkspaceRequest) (*models.Workspace, error) {
	endpoint := fmt.Sprintf("%s/api/v2/organizations/%s/members/%s/workspaces",
		c.host, url.PathEscape(orgID), url.PathEscape(c.serviceUser))

	var ws models.Workspace
	if err := c.apiCall(ctx, http.MethodPost, endpoint, req, &ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

func (c *HTTPClient) Workspace(ctx context.Context, id string) (*models.Workspace, error) {
	endpoint := fmt.Sprintf("%s/api/v2/workspaces/%s?include_deleted=true", c.host, url.PathEscape(id))

	var ws models.Workspace
	if err := c.apiCall(ctx, http.MethodGet, endpoint, nil, &ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

func (c *HTTPClient) DeleteWorkspace(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("%s/api/v2/workspaces/%s/builds", c.host, url.PathEscape(id))

	body := map[string]any{
		"orphan":     false,
		"transition": "delete",
	}
	return c.apiCall(ctx, http.MethodPost, endpoint, body, nil)
}

func (c *HTTPClient) BuildLogs(ctx context.Context, buildID string) ([]models.BuildLogEntry, error) {
	endpoint := fmt.Sprintf("%s/api/v2/workspacebuilds/%s/logs", c.host, url.PathEscape(buildID))

	var logs []models.BuildLogEntry
	if err := c.apiCall(ctx, http.MethodGet, endpoint, nil, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

func (c *HTTPClient) ListWorkspaces(ctx context.Context, owner string) ([]models.Workspace, error) {
	endpoint := fmt.Sprintf("%s/api/v2/workspaces", c.host)
	if owner != "" {
		endpoint += "?q=" + url.QueryEscape("owner:"+owner)
	}

	var resp listWorkspacesResponse
	if err := c.apiCall(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Workspaces, nil
}

// apiCall executes one HTTP call against the Coder API and decodes the JSON
// response into out (out may be nil when the response body is irrelevant).
func (c *HTTPClient) apiCall(ctx context.Context, method, endpoint string, body, out any) error {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodDelete:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidMethod, method)
	}

	var reqBody []byte
	var reader io.Reader
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(reqBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Coder-Session-Token", c.token)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return &TransportError{
			StatusCode:   resp.StatusCode,
			Reason:       http.StatusText(resp.StatusCode),
			Endpoint:     endpoint,
			RequestBody:  string(reqBody),
			ResponseBody: string(respBody),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding coder response: %w", err)
	}
	return nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrCoderTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrCoderTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrCoderUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrCoderUnreachable, err)
}

// --- Coder response types ---

type listWorkspacesResponse struct {
	Workspaces []models.Workspace `json:"workspaces"`
	Count      int                `json:"count"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
