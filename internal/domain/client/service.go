package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/ehr/smart-auth/internal/platform/scope"
	"github.com/ehr/smart-auth/internal/platform/secrets"
)

type Service struct {
	repo          Repository
	defaultTenant string
}

func NewService(repo Repository, defaultTenant string) *Service {
	return &Service{repo: repo, defaultTenant: defaultTenant}
}

// Register creates a client. For confidential clients the returned raw secret
// is shown to the caller exactly once; only the argon2id hash is stored.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Client, string, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, "", fmt.Errorf("client name is required")
	}
	if req.ClientType != TypePublic && req.ClientType != TypeConfidential {
		return nil, "", fmt.Errorf("client_type must be %q or %q", TypePublic, TypeConfidential)
	}
	if len(req.RedirectURIs) == 0 {
		return nil, "", fmt.Errorf("at least one redirect_uri is required")
	}
	for _, uri := range req.RedirectURIs {
		if err := validateRedirectURI(uri); err != nil {
			return nil, "", err
		}
	}
	if _, invalid := scope.Validate(scope.Parse(req.Scope)); len(invalid) > 0 {
		return nil, "", fmt.Errorf("invalid scopes: %s", strings.Join(invalid, " "))
	}

	clientID, err := secrets.RandomHex(16)
	if err != nil {
		return nil, "", fmt.Errorf("generate client_id: %w", err)
	}

	c := &Client{
		ClientID:     clientID,
		Name:         req.Name,
		RedirectURIs: req.RedirectURIs,
		Scope:        req.Scope,
		ClientType:   req.ClientType,
		Tenant:       req.Tenant,
		Active:       true,
	}
	if req.LaunchURI != "" {
		c.LaunchURI = &req.LaunchURI
	}
	if c.Tenant == "" {
		c.Tenant = s.defaultTenant
	}

	var rawSecret string
	if req.ClientType == TypeConfidential {
		rawSecret, err = secrets.RandomHex(32)
		if err != nil {
			return nil, "", fmt.Errorf("generate client secret: %w", err)
		}
		hash, err := secrets.Hash(rawSecret)
		if err != nil {
			return nil, "", fmt.Errorf("hash client secret: %w", err)
		}
		c.SecretHash = &hash
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, "", fmt.Errorf("create client: %w", err)
	}
	return c, rawSecret, nil
}

// Get returns an active client by its public client_id. Deactivated and
// unknown clients both yield ErrNotFound.
func (s *Service) Get(ctx context.Context, clientID string) (*Client, error) {
	c, err := s.repo.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !c.Active {
		return nil, ErrNotFound
	}
	return c, nil
}

// GetByID returns an active client by row id, for the admin API.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Client, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Active {
		return nil, ErrNotFound
	}
	return c, nil
}

// VerifySecret checks a candidate secret against the stored argon2id hash.
// Public clients have no secret and always fail verification.
func (s *Service) VerifySecret(c *Client, candidate string) error {
	if c.SecretHash == nil {
		return fmt.Errorf("client has no secret")
	}
	ok, err := secrets.Verify(candidate, *c.SecretHash)
	if err != nil {
		return fmt.Errorf("verify secret: %w", err)
	}
	if !ok {
		return fmt.Errorf("secret mismatch")
	}
	return nil
}

// Deactivate soft-deletes a client. Idempotent: repeat calls succeed.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.Deactivate(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Client, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// validateRedirectURI requires an absolute https URI, or http on localhost
// for development clients.
func validateRedirectURI(uri string) error {
	u, err := url.Parse(uri)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("redirect_uri %q must be an absolute URI", uri)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if u.Hostname() == "localhost" || u.Hostname() == "127.0.0.1" {
			return nil
		}
		return fmt.Errorf("redirect_uri %q: http is only allowed for localhost", uri)
	default:
		return fmt.Errorf("redirect_uri %q: unsupported scheme %q", uri, u.Scheme)
	}
}
