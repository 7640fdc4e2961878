package client

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypePublic       = "public"
	TypeConfidential = "confidential"
)

// Client maps to the oauth_client table. SecretHash is never serialized; the
// raw secret is returned exactly once, at registration.
type Client struct {
	ID           uuid.UUID `db:"id" json:"id"`
	ClientID     string    `db:"client_id" json:"client_id"`
	SecretHash   *string   `db:"secret_hash" json:"-"`
	Name         string    `db:"name" json:"name"`
	RedirectURIs []string  `db:"redirect_uris" json:"redirect_uris"`
	Scope        string    `db:"scope" json:"scope"`
	ClientType   string    `db:"client_type" json:"client_type"`
	LaunchURI    *string   `db:"launch_uri" json:"launch_uri,omitempty"`
	Tenant       string    `db:"tenant" json:"tenant"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// IsConfidential reports whether the client authenticates with a secret.
func (c *Client) IsConfidential() bool {
	return c.ClientType == TypeConfidential
}

// HasRedirectURI reports whether uri exactly matches a registered redirect.
// Matching is literal string comparison, no normalization.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// RegisterRequest is the admin payload for creating a client.
type RegisterRequest struct {
	Name         string   `json:"name"`
	RedirectURIs []string `json:"redirect_uris"`
	Scope        string   `json:"scope"`
	ClientType   string   `json:"client_type"`
	LaunchURI    string   `json:"launch_uri,omitempty"`
	Tenant       string   `json:"tenant,omitempty"`
}
