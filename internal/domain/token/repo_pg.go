package token

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const Migration = `
CREATE TABLE IF NOT EXISTS oauth_token (
    id                 UUID PRIMARY KEY,
    access_hash        TEXT NOT NULL UNIQUE,
    refresh_hash       TEXT UNIQUE,
    client_id          TEXT NOT NULL,
    user_id            TEXT NOT NULL,
    scope              TEXT NOT NULL,
    patient            TEXT NOT NULL DEFAULT '',
    encounter          TEXT NOT NULL DEFAULT '',
    fhir_user          TEXT NOT NULL DEFAULT '',
    access_expires_at  TIMESTAMPTZ NOT NULL,
    refresh_expires_at TIMESTAMPTZ,
    revoked_at         TIMESTAMPTZ,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_oauth_token_client_id ON oauth_token (client_id);
`

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const tokenColumns = `id, access_hash, refresh_hash, client_id, user_id, scope,
	patient, encounter, fhir_user, access_expires_at, refresh_expires_at,
	revoked_at, created_at`

func (r *repoPG) Create(ctx context.Context, pair *TokenPair) error {
	pair.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO oauth_token (
			id, access_hash, refresh_hash, client_id, user_id, scope,
			patient, encounter, fhir_user, access_expires_at, refresh_expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		pair.ID, pair.AccessHash, pair.RefreshHash, pair.ClientID, pair.UserID, pair.Scope,
		pair.Patient, pair.Encounter, pair.FHIRUser, pair.AccessExpiresAt, pair.RefreshExpiresAt,
	)
	return err
}

func (r *repoPG) GetByAccessHash(ctx context.Context, hash string) (*TokenPair, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM oauth_token WHERE access_hash = $1`, hash))
}

func (r *repoPG) GetByRefreshHash(ctx context.Context, hash string) (*TokenPair, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM oauth_token WHERE refresh_hash = $1`, hash))
}

func (r *repoPG) Revoke(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE oauth_token SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, id)
	return err
}

func (r *repoPG) scan(row pgx.Row) (*TokenPair, error) {
	var p TokenPair
	err := row.Scan(
		&p.ID, &p.AccessHash, &p.RefreshHash, &p.ClientID, &p.UserID, &p.Scope,
		&p.Patient, &p.Encounter, &p.FHIRUser, &p.AccessExpiresAt, &p.RefreshExpiresAt,
		&p.RevokedAt, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
