package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/andrejcermak/ood-core-extension/internal/adapter"
	"github.com/andrejcermak/ood-core-extension/internal/api/response"
	"github.com/andrejcermak/ood-core-extension/internal/coder"
	"github.com/andrejcermak/ood-core-extension/pkg/models"
	"github.com/go-chi/chi/v5"
)

// Lifecycle defines the workspace operations the handlers depend on.
type Lifecycle interface {
	Submit(ctx context.Context, req adapter.SubmitRequest) (string, error)
	Info(ctx context.Context, id string) (models.JobInfo, error)
	Status(ctx context.Context, id string) (models.Status, error)
	Delete(ctx context.Context, id string) error
	InfoAll(ctx context.Context) ([]models.JobInfo, error)
	InfoWhereOwner(ctx context.Context, owner string) ([]models.JobInfo, error)
}

// NewSubmitHandler returns an http.HandlerFunc for POST /api/v1/workspaces.
func NewSubmitHandler(svc Lifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OrgID             string            `json:"org_id"`
			ProjectID         string            `json:"project_id"`
			TemplateVersionID string            `json:"template_version_id"`
			WorkspaceName     string            `json:"workspace_name"`
			Parameters        map[string]string `json:"parameters"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		missing := map[string][]string{}
		if req.OrgID == "" {
			missing["org_id"] = []string{"org_id is required"}
		}
		if req.ProjectID == "" {
			missing["project_id"] = []string{"project_id is required"}
		}
		if req.TemplateVersionID == "" {
			missing["template_version_id"] = []string{"template_version_id is required"}
		}
		if req.WorkspaceName == "" {
			missing["workspace_name"] = []string{"workspace_name is required"}
		}
		if len(missing) > 0 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Missing required fields", missing)
			return
		}

		id, err := svc.Submit(r.Context(), adapter.SubmitRequest{
			OrgID:             req.OrgID,
			ProjectID:         req.ProjectID,
			TemplateVersionID: req.TemplateVersionID,
			WorkspaceName:     req.WorkspaceName,
			Parameters:        req.Parameters,
		})
		if err != nil {
			writeLifecycleError(w, err)
			return
		}

		response.Created(w, map[string]string{"workspace_id": id})
	}
}

// NewListHandler returns an http.HandlerFunc for GET /api/v1/workspaces.
// An optional owner query parameter narrows the listing.
func NewListHandler(svc Lifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := r.URL.Query().Get("owner")

		var (
			infos []models.JobInfo
			err   error
		)
		if owner == "" {
			infos, err = svc.InfoAll(r.Context())
		} else {
			infos, err = svc.InfoWhereOwner(r.Context(), owner)
		}
		if err != nil {
			writeLifecycleError(w, err)
			return
		}

		response.JSON(w, infos)
	}
}

// NewInfoHandler returns an http.HandlerFunc for GET /api/v1/workspaces/{workspaceID}.
func NewInfoHandler(svc Lifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := svc.Info(r.Context(), chi.URLParam(r, "workspaceID"))
		if err != nil {
			writeLifecycleError(w, err)
			return
		}
		response.JSON(w, info)
	}
}

// NewStatusHandler returns an http.HandlerFunc for GET /api/v1/workspaces/{workspaceID}/status.
func NewStatusHandler(svc Lifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "workspaceID")
		status, err := svc.Status(r.Context(), id)
		if err != nil {
			writeLifecycleError(w, err)
			return
		}
		response.JSON(w, map[string]string{
			"workspace_id": id,
			"status":       string(status),
		})
	}
}

// NewDeleteHandler returns an http.HandlerFunc for DELETE /api/v1/workspaces/{workspaceID}.
// The call blocks while the adapter polls the delete transition, so success
// is reported as accepted rather than a hard completion.
func NewDeleteHandler(svc Lifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "workspaceID")
		if err := svc.Delete(r.Context(), id); err != nil {
			writeLifecycleError(w, err)
			return
		}
		response.Accepted(w, map[string]string{"workspace_id": id})
	}
}

// writeLifecycleError maps adapter failures onto HTTP responses. Remote
// gateway failures surface as 502 so the caller can tell an upstream problem
// from a broken adapter.
func writeLifecycleError(w http.ResponseWriter, err error) {
	var te *coder.TransportError
	switch {
	case errors.As(err, &te) && te.NotFound():
		response.Error(w, http.StatusNotFound, "WORKSPACE_NOT_FOUND",
			"Workspace does not exist", nil)
	case errors.As(err, &te):
		response.Error(w, http.StatusBadGateway, "REMOTE_ERROR",
			"The workspace service rejected the request", map[string]any{"status": te.StatusCode})
	case errors.Is(err, coder.ErrCoderUnreachable), errors.Is(err, coder.ErrCoderTimeout):
		response.Error(w, http.StatusBadGateway, "REMOTE_UNAVAILABLE",
			"The workspace service is not reachable", nil)
	case errors.Is(err, adapter.ErrMalformedTimestamp):
		response.Error(w, http.StatusBadGateway, "MALFORMED_REMOTE_DATA",
			"The workspace service returned an unparseable timestamp", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
