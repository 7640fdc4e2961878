package launch

import "context"

// Store is the persistence interface for launch contexts. Get and Consume
// return (nil, nil) for missing or expired tokens; Consume also deletes the
// row so a token resolves at most once.
type Store interface {
	Save(ctx context.Context, token string, lc *LaunchContext) error
	Get(ctx context.Context, token string) (*LaunchContext, error)
	Consume(ctx context.Context, token string) (*LaunchContext, error)
	Cleanup(ctx context.Context) error
}
