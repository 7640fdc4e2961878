package authorize

import "context"

// Repository persists authorization codes. Consume marks a code used and
// returns it in one atomic statement; a code that is missing or already used
// yields (nil, nil). Expiry is NOT checked here: the caller inspects the
// returned row, so a lost race and an expired code are indistinguishable to
// clients.
type Repository interface {
	Create(ctx context.Context, code *AuthorizationCode) error
	Consume(ctx context.Context, code string) (*AuthorizationCode, error)
}
