package client

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound covers both missing and deactivated clients; callers must not
// be able to tell the two apart.
var ErrNotFound = errors.New("client not found")

// Repository defines the persistence interface for OAuth clients.
type Repository interface {
	Create(ctx context.Context, c *Client) error
	GetByClientID(ctx context.Context, clientID string) (*Client, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Client, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Client, int, error)
}
