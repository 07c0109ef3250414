package models

import "time"

// Credentials is an ephemeral application-credential bundle issued for one
// workspace against one backing project. The secret is only ever shown to the
// provisioner; it never appears in API responses.
type Credentials struct {
	ID        string    `db:"credential_id" json:"id"`
	Name      string    `db:"name"          json:"name"`
	Secret    string    `db:"secret"        json:"-"`
	ProjectID string    `db:"project_id"    json:"project_id"`
	CreatedAt time.Time `db:"created_at"    json:"created_at"`
}
