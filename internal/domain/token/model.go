package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenPair maps to the oauth_token table. Only SHA-256 digests of the
// issued tokens are stored; the raw values exist nowhere but in the response
// that delivered them.
type TokenPair struct {
	ID               uuid.UUID  `db:"id"`
	AccessHash       string     `db:"access_hash"`
	RefreshHash      *string    `db:"refresh_hash"`
	ClientID         string     `db:"client_id"`
	UserID           string     `db:"user_id"`
	Scope            string     `db:"scope"`
	Patient          string     `db:"patient"`
	Encounter        string     `db:"encounter"`
	FHIRUser         string     `db:"fhir_user"`
	AccessExpiresAt  time.Time  `db:"access_expires_at"`
	RefreshExpiresAt *time.Time `db:"refresh_expires_at"`
	RevokedAt        *time.Time `db:"revoked_at"`
	CreatedAt        time.Time  `db:"created_at"`
}

// Revoked reports whether the pair has been explicitly revoked.
func (p *TokenPair) Revoked() bool {
	return p.RevokedAt != nil
}

// Claims is the access token payload. Every token this server signs goes
// through Map(), so the claim set has exactly one shape.
type Claims struct {
	Issuer    string
	Subject   string
	Audience  string
	ExpiresAt time.Time
	IssuedAt  time.Time
	TokenID   string
	Scope     string
	FHIRUser  string
	Patient   string
	Encounter string
}

// Map encodes the claims for signing. Optional launch claims are omitted
// when empty rather than emitted as blank strings.
func (c Claims) Map() jwt.MapClaims {
	m := jwt.MapClaims{
		"iss":        c.Issuer,
		"sub":        c.Subject,
		"aud":        c.Audience,
		"exp":        c.ExpiresAt.Unix(),
		"iat":        c.IssuedAt.Unix(),
		"jti":        c.TokenID,
		"scope":      c.Scope,
		"token_type": "smart",
	}
	if c.FHIRUser != "" {
		m["fhirUser"] = c.FHIRUser
	}
	if c.Patient != "" {
		m["patient"] = c.Patient
	}
	if c.Encounter != "" {
		m["encounter"] = c.Encounter
	}
	return m
}

// Request carries the form parameters of POST /auth/token.
type Request struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	ClientSecret string
	CodeVerifier string
	RefreshToken string
}

// Response is the token endpoint response body.
type Response struct {
	AccessToken       string `json:"access_token"`
	TokenType         string `json:"token_type"`
	ExpiresIn         int    `json:"expires_in"`
	Scope             string `json:"scope"`
	RefreshToken      string `json:"refresh_token,omitempty"`
	Patient           string `json:"patient,omitempty"`
	Encounter         string `json:"encounter,omitempty"`
	NeedPatientBanner bool   `json:"need_patient_banner"`
}

// Introspection is the RFC 7662 response. Inactive tokens carry nothing but
// active=false.
type Introspection struct {
	Active   bool   `json:"active"`
	Scope    string `json:"scope,omitempty"`
	ClientID string `json:"client_id,omitempty"`
	Subject  string `json:"sub,omitempty"`
	Exp      int64  `json:"exp,omitempty"`
	Patient  string `json:"patient,omitempty"`
}
