package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/andrejcermak/ood-core-extension/pkg/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) SaveCredentials(ctx context.Context, workspaceID string, creds *models.Credentials) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO credential_bindings (workspace_id, credential_id, name, secret, project_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		workspaceID, creds.ID, creds.Name, creds.Secret, creds.ProjectID, creds.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCredentials(ctx context.Context, workspaceID string) (*models.Credentials, error) {
	var c models.Credentials
	err := s.pool.QueryRow(ctx,
		`SELECT credential_id, name, secret, project_id, created_at
		 FROM credential_bindings WHERE workspace_id = $1`, workspaceID,
	).Scan(&c.ID, &c.Name, &c.Secret, &c.ProjectID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credentials: %w", err)
	}
	return &c, nil
}

// DeleteCredentials removes the binding for a workspace. Deleting a binding
// that is already gone is not an error.
func (s *PostgresStore) DeleteCredentials(ctx context.Context, workspaceID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM credential_bindings WHERE workspace_id = $1`, workspaceID)
	if err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
