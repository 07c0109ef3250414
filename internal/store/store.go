package store

import (
	"context"
	"errors"

	"github.com/andrejcermak/ood-core-extension/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store persists workspace-to-credential bindings. At most one binding may
// exist per workspace id; the delete is idempotent so credential teardown can
// be retried safely.
type Store interface {
	Ping(ctx context.Context) error

	SaveCredentials(ctx context.Context, workspaceID string, creds *models.Credentials) error
	GetCredentials(ctx context.Context, workspaceID string) (*models.Credentials, error)
	DeleteCredentials(ctx context.Context, workspaceID string) error
}
