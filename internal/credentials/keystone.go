package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/andrejcermak/ood-core-extension/pkg/models"
)

// ErrKeystoneUnavailable indicates the identity service could not be reached
// or rejected the request.
var ErrKeystoneUnavailable = errors.New("keystone unavailable")

// KeystoneIssuer issues OpenStack application credentials through the
// Keystone v3 API.
type KeystoneIssuer struct {
	baseURL string
	token   string
	userID  string
	client  *http.Client
}

// NewKeystoneIssuer creates a new KeystoneIssuer. baseURL points at the
// Keystone v3 root; userID is the service account the application
// credentials belong to.
func NewKeystoneIssuer(baseURL, token, userID string, timeout time.Duration) *KeystoneIssuer {
	return &KeystoneIssuer{
		baseURL: baseURL,
		token:   token,
		userID:  userID,
		client:  &http.Client{Timeout: timeout},
	}
}

func (k *KeystoneIssuer) Issue(ctx context.Context, projectID, name string) (*models.Credentials, error) {
	endpoint := fmt.Sprintf("%s/users/%s/application_credentials", k.baseURL, url.PathEscape(k.userID))

	body, err := json.Marshal(applicationCredentialRequest{
		ApplicationCredential: applicationCredentialSpec{
			Name:        name,
			Description: "ephemeral workspace credential",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	k.setHeaders(httpReq)

	resp, err := k.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeystoneUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrKeystoneUnavailable, resp.StatusCode, respBody)
	}

	var created applicationCredentialResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decoding keystone response: %w", err)
	}

	return &models.Credentials{
		ID:     created.ApplicationCredential.ID,
		Name:   created.ApplicationCredential.Name,
		Secret: created.ApplicationCredential.Secret,
	}, nil
}

// Revoke deletes the application credential. A 404 means it is already gone
// and counts as success.
func (k *KeystoneIssuer) Revoke(ctx context.Context, credentialID string) error {
	endpoint := fmt.Sprintf("%s/users/%s/application_credentials/%s",
		k.baseURL, url.PathEscape(k.userID), url.PathEscape(credentialID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	k.setHeaders(httpReq)

	resp, err := k.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeystoneUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: status %d: %s", ErrKeystoneUnavailable, resp.StatusCode, respBody)
	}
	return nil
}

func (k *KeystoneIssuer) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Auth-Token", k.token)
}

// --- Keystone request/response types ---

type applicationCredentialRequest struct {
	ApplicationCredential applicationCredentialSpec `json:"application_credential"`
}

type applicationCredentialSpec struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type applicationCredentialResponse struct {
	ApplicationCredential struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Secret string `json:"secret"`
	} `json:"application_credential"`
}

// Compile-time check that KeystoneIssuer implements Issuer.
var _ Issuer = (*KeystoneIssuer)(nil)
