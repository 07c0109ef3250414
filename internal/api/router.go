package api

import (
	"net/http"

	mw "github.com/andrejcermak/ood-core-extension/internal/api/middleware"
	"github.com/andrejcermak/ood-core-extension/internal/api/response"
	"github.com/go-chi/chi/v5"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler   http.HandlerFunc
	SubmitWorkspace http.HandlerFunc
	ListWorkspaces  http.HandlerFunc
	GetWorkspace    http.HandlerFunc
	WorkspaceStatus http.HandlerFunc
	DeleteWorkspace http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/workspaces", orNotImplemented(deps.SubmitWorkspace))
		r.Get("/api/v1/workspaces", orNotImplemented(deps.ListWorkspaces))
		r.Get("/api/v1/workspaces/{workspaceID}", orNotImplemented(deps.GetWorkspace))
		r.Get("/api/v1/workspaces/{workspaceID}/status", orNotImplemented(deps.WorkspaceStatus))
		r.Delete("/api/v1/workspaces/{workspaceID}", orNotImplemented(deps.DeleteWorkspace))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
