package authorize

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const Migration = `
CREATE TABLE IF NOT EXISTS oauth_authorization_code (
    code                  TEXT PRIMARY KEY,
    client_id             TEXT NOT NULL,
    user_id               TEXT NOT NULL,
    redirect_uri          TEXT NOT NULL,
    scope                 TEXT NOT NULL,
    code_challenge        TEXT NOT NULL DEFAULT '',
    code_challenge_method TEXT NOT NULL DEFAULT '',
    launch_patient        TEXT NOT NULL DEFAULT '',
    launch_encounter      TEXT NOT NULL DEFAULT '',
    fhir_user             TEXT NOT NULL DEFAULT '',
    expires_at            TIMESTAMPTZ NOT NULL,
    used                  BOOLEAN NOT NULL DEFAULT FALSE,
    created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_oauth_authorization_code_expires_at
    ON oauth_authorization_code (expires_at);
`

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) Create(ctx context.Context, code *AuthorizationCode) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO oauth_authorization_code (
			code, client_id, user_id, redirect_uri, scope,
			code_challenge, code_challenge_method,
			launch_patient, launch_encounter, fhir_user, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		code.Code, code.ClientID, code.UserID, code.RedirectURI, code.Scope,
		code.CodeChallenge, code.CodeChallengeMethod,
		code.LaunchPatient, code.LaunchEncounter, code.FHIRUser, code.ExpiresAt,
	)
	return err
}

// Consume burns the code with a conditional UPDATE ... RETURNING. Two
// concurrent exchanges race on the used flag; exactly one sees the row.
func (r *repoPG) Consume(ctx context.Context, code string) (*AuthorizationCode, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE oauth_authorization_code
		SET used = TRUE
		WHERE code = $1 AND used = FALSE
		RETURNING code, client_id, user_id, redirect_uri, scope,
		          code_challenge, code_challenge_method,
		          launch_patient, launch_encounter, fhir_user,
		          expires_at, used, created_at`,
		code)

	var ac AuthorizationCode
	err := row.Scan(
		&ac.Code, &ac.ClientID, &ac.UserID, &ac.RedirectURI, &ac.Scope,
		&ac.CodeChallenge, &ac.CodeChallengeMethod,
		&ac.LaunchPatient, &ac.LaunchEncounter, &ac.FHIRUser,
		&ac.ExpiresAt, &ac.Used, &ac.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ac, nil
}
