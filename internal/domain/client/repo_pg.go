package client

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const Migration = `
CREATE TABLE IF NOT EXISTS oauth_client (
    id            UUID PRIMARY KEY,
    client_id     TEXT NOT NULL UNIQUE,
    secret_hash   TEXT,
    name          TEXT NOT NULL,
    redirect_uris TEXT[] NOT NULL,
    scope         TEXT NOT NULL,
    client_type   TEXT NOT NULL,
    launch_uri    TEXT,
    tenant        TEXT NOT NULL DEFAULT 'default',
    active        BOOLEAN NOT NULL DEFAULT TRUE,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_oauth_client_client_id ON oauth_client (client_id);
`

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const clientColumns = `id, client_id, secret_hash, name, redirect_uris, scope,
	client_type, launch_uri, tenant, active, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, c *Client) error {
	c.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO oauth_client (
			id, client_id, secret_hash, name, redirect_uris, scope,
			client_type, launch_uri, tenant
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.ClientID, c.SecretHash, c.Name, c.RedirectURIs, c.Scope,
		c.ClientType, c.LaunchURI, c.Tenant,
	)
	return err
}

func (r *repoPG) GetByClientID(ctx context.Context, clientID string) (*Client, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM oauth_client WHERE client_id = $1`, clientID))
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Client, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM oauth_client WHERE id = $1`, id))
}

func (r *repoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	// No row count check: deactivating a missing or already-inactive client
	// is a no-op.
	_, err := r.pool.Exec(ctx,
		`UPDATE oauth_client SET active = FALSE, updated_at = now() WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Client, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM oauth_client`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+clientColumns+` FROM oauth_client ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var clients []*Client
	for rows.Next() {
		c, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		clients = append(clients, c)
	}
	return clients, total, rows.Err()
}

func (r *repoPG) scan(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(
		&c.ID, &c.ClientID, &c.SecretHash, &c.Name, &c.RedirectURIs, &c.Scope,
		&c.ClientType, &c.LaunchURI, &c.Tenant, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
