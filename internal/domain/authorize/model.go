package authorize

import "time"

const (
	ChallengeS256  = "S256"
	ChallengePlain = "plain"
)

// AuthorizationCode maps to the oauth_authorization_code table. The code
// value itself is the primary key: an opaque 32-byte random hex string.
type AuthorizationCode struct {
	Code                string    `db:"code" json:"-"`
	ClientID            string    `db:"client_id" json:"client_id"`
	UserID              string    `db:"user_id" json:"user_id"`
	RedirectURI         string    `db:"redirect_uri" json:"redirect_uri"`
	Scope               string    `db:"scope" json:"scope"`
	CodeChallenge       string    `db:"code_challenge" json:"-"`
	CodeChallengeMethod string    `db:"code_challenge_method" json:"-"`
	LaunchPatient       string    `db:"launch_patient" json:"launch_patient,omitempty"`
	LaunchEncounter     string    `db:"launch_encounter" json:"launch_encounter,omitempty"`
	FHIRUser            string    `db:"fhir_user" json:"fhir_user,omitempty"`
	ExpiresAt           time.Time `db:"expires_at" json:"expires_at"`
	Used                bool      `db:"used" json:"used"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the code is past its TTL. Checked lazily: expired
// rows stay in the table until consumed or swept by the database.
func (c *AuthorizationCode) Expired() bool {
	return time.Now().After(c.ExpiresAt)
}

// Request carries the parameters of GET /auth/authorize.
type Request struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	Launch              string
	CodeChallenge       string
	CodeChallengeMethod string
	UserID              string
}

// Grant is the service-level result of a successful authorization: the
// handler appends Code and State to the redirect URI.
type Grant struct {
	Code  string
	State string
}
