package token

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/smart-auth/internal/domain/authorize"
	"github.com/ehr/smart-auth/internal/domain/client"
	"github.com/ehr/smart-auth/internal/platform/cache"
	"github.com/ehr/smart-auth/internal/platform/keys"
	"github.com/ehr/smart-auth/internal/platform/oauth"
	"github.com/ehr/smart-auth/internal/platform/secrets"
)

// ClientDirectory resolves and authenticates clients.
type ClientDirectory interface {
	Get(ctx context.Context, clientID string) (*client.Client, error)
	VerifySecret(c *client.Client, candidate string) error
}

// CodeConsumer burns authorization codes.
type CodeConsumer interface {
	Consume(ctx context.Context, code string) (*authorize.AuthorizationCode, error)
}

type Service struct {
	repo       Repository
	clients    ClientDirectory
	codes      CodeConsumer
	signer     *keys.Manager
	cache      cache.TokenCache
	logger     zerolog.Logger
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewService(
	repo Repository,
	clients ClientDirectory,
	codes CodeConsumer,
	signer *keys.Manager,
	tc cache.TokenCache,
	logger zerolog.Logger,
	issuer string,
	accessTTL, refreshTTL time.Duration,
) *Service {
	return &Service{
		repo:       repo,
		clients:    clients,
		codes:      codes,
		signer:     signer,
		cache:      tc,
		logger:     logger,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// ExchangeCode implements the authorization_code grant. The code is burned
// before any later check runs: a request that fails on client auth or PKCE
// still consumes the code, and the client must restart the flow.
func (s *Service) ExchangeCode(ctx context.Context, req *Request) (*Response, error) {
	ac, err := s.codes.Consume(ctx, req.Code)
	if err != nil {
		return nil, fmt.Errorf("consume authorization code: %w", err)
	}
	if ac == nil {
		return nil, oauth.InvalidGrant("invalid or already used authorization code")
	}
	if ac.Expired() {
		return nil, oauth.InvalidGrant("authorization code has expired")
	}

	if ac.ClientID != req.ClientID {
		return nil, oauth.InvalidGrant("client_id does not match")
	}
	cl, err := s.clients.Get(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return nil, oauth.InvalidClient()
		}
		return nil, fmt.Errorf("lookup client: %w", err)
	}
	if cl.IsConfidential() {
		if err := s.clients.VerifySecret(cl, req.ClientSecret); err != nil {
			return nil, oauth.InvalidClient()
		}
	}

	if req.RedirectURI != "" && req.RedirectURI != ac.RedirectURI {
		return nil, oauth.InvalidGrant("redirect_uri does not match")
	}

	if ac.CodeChallenge != "" {
		if req.CodeVerifier == "" {
			return nil, oauth.InvalidGrant("code_verifier is required")
		}
		if !verifyPKCE(req.CodeVerifier, ac.CodeChallenge, ac.CodeChallengeMethod) {
			return nil, oauth.InvalidGrant("PKCE verification failed")
		}
	}

	return s.mint(ctx, ac.ClientID, ac.UserID, ac.Scope, ac.LaunchPatient, ac.LaunchEncounter, ac.FHIRUser)
}

// Refresh implements the refresh_token grant with rotation: the presented
// pair is revoked and a new one minted carrying the grant state forward.
func (s *Service) Refresh(ctx context.Context, refreshToken, clientID, clientSecret string) (*Response, error) {
	pair, err := s.repo.GetByRefreshHash(ctx, secrets.Digest(refreshToken))
	if err != nil {
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	if pair == nil || pair.Revoked() {
		return nil, oauth.InvalidGrant("invalid refresh token")
	}
	if pair.RefreshExpiresAt == nil || time.Now().After(*pair.RefreshExpiresAt) {
		return nil, oauth.InvalidGrant("refresh token has expired")
	}
	if pair.ClientID != clientID {
		return nil, oauth.InvalidGrant("client_id does not match refresh token")
	}

	cl, err := s.clients.Get(ctx, clientID)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return nil, oauth.InvalidClient()
		}
		return nil, fmt.Errorf("lookup client: %w", err)
	}
	if cl.IsConfidential() {
		if err := s.clients.VerifySecret(cl, clientSecret); err != nil {
			return nil, oauth.InvalidClient()
		}
	}

	if err := s.repo.Revoke(ctx, pair.ID); err != nil {
		return nil, fmt.Errorf("revoke rotated token: %w", err)
	}
	s.evict(ctx, pair.AccessHash)

	return s.mint(ctx, pair.ClientID, pair.UserID, pair.Scope, pair.Patient, pair.Encounter, pair.FHIRUser)
}

// mint signs an access token, generates the opaque refresh token, persists
// the digests, and best-effort populates the cache.
func (s *Service) mint(ctx context.Context, clientID, userID, scopeStr, patient, encounter, fhirUser string) (*Response, error) {
	now := time.Now()
	jti, err := secrets.RandomHex(16)
	if err != nil {
		return nil, fmt.Errorf("generate token id: %w", err)
	}

	claims := Claims{
		Issuer:    s.issuer,
		Subject:   userID,
		Audience:  clientID,
		ExpiresAt: now.Add(s.accessTTL),
		IssuedAt:  now,
		TokenID:   jti,
		Scope:     scopeStr,
		FHIRUser:  fhirUser,
		Patient:   patient,
		Encounter: encounter,
	}
	accessToken, err := s.signer.Sign(claims.Map())
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	pair := &TokenPair{
		AccessHash:      secrets.Digest(accessToken),
		ClientID:        clientID,
		UserID:          userID,
		Scope:           scopeStr,
		Patient:         patient,
		Encounter:       encounter,
		FHIRUser:        fhirUser,
		AccessExpiresAt: claims.ExpiresAt,
	}

	refreshToken, err := secrets.RandomHex(32)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	refreshHash := secrets.Digest(refreshToken)
	refreshExp := now.Add(s.refreshTTL)
	pair.RefreshHash = &refreshHash
	pair.RefreshExpiresAt = &refreshExp

	if err := s.repo.Create(ctx, pair); err != nil {
		return nil, fmt.Errorf("store token pair: %w", err)
	}

	s.populate(ctx, pair)

	return &Response{
		AccessToken:       accessToken,
		TokenType:         "Bearer",
		ExpiresIn:         int(s.accessTTL.Seconds()),
		Scope:             scopeStr,
		RefreshToken:      refreshToken,
		Patient:           patient,
		Encounter:         encounter,
		NeedPatientBanner: true,
	}, nil
}

// Introspect implements RFC 7662. Unknown, expired, and revoked tokens all
// come back as active=false; introspection never errors on bad input.
func (s *Service) Introspect(ctx context.Context, rawToken string) *Introspection {
	if rawToken == "" {
		return &Introspection{Active: false}
	}
	hash := secrets.Digest(rawToken)

	if entry, err := s.cache.Get(ctx, hash); err != nil {
		s.logger.Warn().Err(err).Msg("token cache read failed")
	} else if entry != nil {
		if entry.Revoked || time.Now().After(entry.ExpiresAt) {
			return &Introspection{Active: false}
		}
		return &Introspection{
			Active:   true,
			Scope:    entry.Scope,
			ClientID: entry.ClientID,
			Subject:  entry.UserID,
			Exp:      entry.ExpiresAt.Unix(),
			Patient:  entry.Patient,
		}
	}

	pair, err := s.repo.GetByAccessHash(ctx, hash)
	if err != nil {
		s.logger.Error().Err(err).Msg("token store read failed")
		return &Introspection{Active: false}
	}
	expiresAt := time.Time{}
	if pair != nil {
		expiresAt = pair.AccessExpiresAt
	} else {
		// The token may be a refresh token; RFC 7662 covers both kinds.
		pair, err = s.repo.GetByRefreshHash(ctx, hash)
		if err != nil {
			s.logger.Error().Err(err).Msg("token store read failed")
			return &Introspection{Active: false}
		}
		if pair != nil && pair.RefreshExpiresAt != nil {
			expiresAt = *pair.RefreshExpiresAt
		}
	}

	if pair == nil || pair.Revoked() || time.Now().After(expiresAt) {
		return &Introspection{Active: false}
	}

	if pair.AccessHash == hash {
		s.populate(ctx, pair)
	}

	return &Introspection{
		Active:   true,
		Scope:    pair.Scope,
		ClientID: pair.ClientID,
		Subject:  pair.UserID,
		Exp:      expiresAt.Unix(),
		Patient:  pair.Patient,
	}
}

// Revoke implements RFC 7009: revoking an unknown or already-revoked token
// succeeds silently.
func (s *Service) Revoke(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	hash := secrets.Digest(rawToken)

	pair, err := s.repo.GetByAccessHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("lookup token: %w", err)
	}
	if pair == nil {
		pair, err = s.repo.GetByRefreshHash(ctx, hash)
		if err != nil {
			return fmt.Errorf("lookup token: %w", err)
		}
	}
	if pair == nil || pair.Revoked() {
		return nil
	}

	if err := s.repo.Revoke(ctx, pair.ID); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.evict(ctx, pair.AccessHash)
	return nil
}

// populate writes the pair into the cache for the remaining access lifetime.
// Failures are logged and swallowed; the store stays authoritative.
func (s *Service) populate(ctx context.Context, pair *TokenPair) {
	ttl := time.Until(pair.AccessExpiresAt)
	if ttl <= 0 {
		return
	}
	entry := &cache.Entry{
		ClientID:  pair.ClientID,
		UserID:    pair.UserID,
		Scope:     pair.Scope,
		Patient:   pair.Patient,
		Encounter: pair.Encounter,
		FHIRUser:  pair.FHIRUser,
		ExpiresAt: pair.AccessExpiresAt,
	}
	if err := s.cache.Set(ctx, pair.AccessHash, entry, ttl); err != nil {
		s.logger.Warn().Err(err).Msg("token cache write failed")
	}
}

func (s *Service) evict(ctx context.Context, accessHash string) {
	if err := s.cache.Delete(ctx, accessHash); err != nil {
		s.logger.Warn().Err(err).Msg("token cache delete failed")
	}
}

// verifyPKCE checks a code_verifier against the bound challenge. S256 is
// base64url(SHA-256(verifier)); plain compares directly. Both paths use a
// constant-time comparison.
func verifyPKCE(verifier, challenge, method string) bool {
	switch method {
	case authorize.ChallengePlain:
		return secrets.ConstantTimeEquals(verifier, challenge)
	default:
		sum := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		return secrets.ConstantTimeEquals(computed, challenge)
	}
}
