// Package credentials issues, persists, and destroys the ephemeral
// application credentials a workspace needs to provision cloud resources.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/andrejcermak/ood-core-extension/internal/store"
	"github.com/andrejcermak/ood-core-extension/pkg/models"
	"github.com/google/uuid"
)

// ProviderError wraps any failure inside the credential provider so callers
// can distinguish it from remote-gateway failures.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("credential provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Provider is the four-operation credential interface the lifecycle
// orchestrators consume. Implementations must guarantee that destroying
// credentials twice for the same workspace is safe.
type Provider interface {
	GenerateCredentials(ctx context.Context, projectID string) (*models.Credentials, error)
	SaveCredentials(ctx context.Context, workspaceID string, creds *models.Credentials) error
	LoadCredentials(ctx context.Context, workspaceID string) (*models.Credentials, error)
	DestroyCredentials(ctx context.Context, creds *models.Credentials, lastObservedState, workspaceID string) error
}

// Issuer creates and revokes credentials against the backing identity service.
type Issuer interface {
	Issue(ctx context.Context, projectID, name string) (*models.Credentials, error)
	Revoke(ctx context.Context, credentialID string) error
}

// StoreProvider implements Provider by issuing credentials through an Issuer
// and persisting the workspace binding in a Store.
type StoreProvider struct {
	issuer Issuer
	store  store.Store
}

// NewStoreProvider creates a new StoreProvider.
func NewStoreProvider(issuer Issuer, s store.Store) *StoreProvider {
	return &StoreProvider{issuer: issuer, store: s}
}

func (p *StoreProvider) GenerateCredentials(ctx context.Context, projectID string) (*models.Credentials, error) {
	name := "ood-" + uuid.NewString()
	creds, err := p.issuer.Issue(ctx, projectID, name)
	if err != nil {
		return nil, &ProviderError{Op: "generate", Err: err}
	}
	creds.ProjectID = projectID
	if creds.CreatedAt.IsZero() {
		creds.CreatedAt = time.Now().UTC()
	}
	return creds, nil
}

func (p *StoreProvider) SaveCredentials(ctx context.Context, workspaceID string, creds *models.Credentials) error {
	if err := p.store.SaveCredentials(ctx, workspaceID, creds); err != nil {
		return &ProviderError{Op: "save", Err: err}
	}
	return nil
}

func (p *StoreProvider) LoadCredentials(ctx context.Context, workspaceID string) (*models.Credentials, error) {
	creds, err := p.store.GetCredentials(ctx, workspaceID)
	if err != nil {
		return nil, &ProviderError{Op: "load", Err: err}
	}
	return creds, nil
}

// DestroyCredentials revokes the credential at the identity service and drops
// the workspace binding. Both steps tolerate the resource being gone already,
// so the teardown can run after a deletion timeout without risking a double
// destroy error.
func (p *StoreProvider) DestroyCredentials(ctx context.Context, creds *models.Credentials, lastObservedState, workspaceID string) error {
	if creds == nil {
		return &ProviderError{Op: "destroy", Err: errors.New("nil credentials")}
	}

	slog.Info("destroying workspace credentials",
		"workspace_id", workspaceID,
		"credential_name", creds.Name,
		"last_observed_state", lastObservedState,
	)

	if err := p.issuer.Revoke(ctx, creds.ID); err != nil {
		return &ProviderError{Op: "destroy", Err: err}
	}
	if err := p.store.DeleteCredentials(ctx, workspaceID); err != nil {
		return &ProviderError{Op: "destroy", Err: err}
	}
	return nil
}

// Compile-time check that StoreProvider implements Provider.
var _ Provider = (*StoreProvider)(nil)
