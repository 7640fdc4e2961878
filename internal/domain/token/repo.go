package token

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists token pairs keyed by token digests. Lookups return
// (nil, nil) when no row matches; the caller decides whether that means
// invalid_grant or simply active=false.
type Repository interface {
	Create(ctx context.Context, pair *TokenPair) error
	GetByAccessHash(ctx context.Context, hash string) (*TokenPair, error)
	GetByRefreshHash(ctx context.Context, hash string) (*TokenPair, error)
	Revoke(ctx context.Context, id uuid.UUID) error
}
