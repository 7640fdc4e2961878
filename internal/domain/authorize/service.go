package authorize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ehr/smart-auth/internal/domain/client"
	"github.com/ehr/smart-auth/internal/domain/launch"
	"github.com/ehr/smart-auth/internal/platform/oauth"
	"github.com/ehr/smart-auth/internal/platform/scope"
	"github.com/ehr/smart-auth/internal/platform/secrets"
)

// ClientDirectory resolves active clients by their public client_id.
type ClientDirectory interface {
	Get(ctx context.Context, clientID string) (*client.Client, error)
}

// LaunchResolver consumes launch tokens created by the EHR frontend.
type LaunchResolver interface {
	Consume(ctx context.Context, token string) (*launch.LaunchContext, error)
}

type Service struct {
	repo     Repository
	clients  ClientDirectory
	launches LaunchResolver
	codeTTL  time.Duration
}

func NewService(repo Repository, clients ClientDirectory, launches LaunchResolver, codeTTL time.Duration) *Service {
	return &Service{repo: repo, clients: clients, launches: launches, codeTTL: codeTTL}
}

// noRedirectError marks authorization failures raised before the client and
// redirect URI were validated. The handler answers these with a JSON body:
// redirecting would send the browser to an unverified URI.
type noRedirectError struct {
	err *oauth.Error
}

func (e *noRedirectError) Error() string { return e.err.Error() }
func (e *noRedirectError) Unwrap() error { return e.err }

// NoRedirect reports whether err must not be delivered via error redirect.
func NoRedirect(err error) bool {
	var nre *noRedirectError
	return errors.As(err, &nre)
}

// Authorize validates the request and issues a single-use code. Checks run
// in a fixed order and fail fast; client lookup failures surface a generic
// invalid_request so callers cannot enumerate the client registry.
func (s *Service) Authorize(ctx context.Context, req *Request) (*Grant, error) {
	if req.ResponseType != "code" {
		return nil, &noRedirectError{err: oauth.NewError(oauth.ErrUnsupportedResponseType, "response_type must be 'code'")}
	}
	if req.UserID == "" {
		return nil, &noRedirectError{err: oauth.NewError(oauth.ErrInvalidRequest, "no authenticated user")}
	}

	cl, err := s.clients.Get(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return nil, &noRedirectError{err: oauth.NewError(oauth.ErrInvalidRequest, "unknown client_id")}
		}
		return nil, fmt.Errorf("lookup client: %w", err)
	}

	if !cl.HasRedirectURI(req.RedirectURI) {
		return nil, &noRedirectError{err: oauth.NewError(oauth.ErrInvalidRequest, "redirect_uri not registered for this client")}
	}

	negotiated, err := scope.Negotiate(req.Scope, cl.Scope)
	if err != nil {
		return nil, oauth.NewError(oauth.ErrInvalidScope, err.Error())
	}

	challenge := req.CodeChallenge
	method := req.CodeChallengeMethod
	if challenge != "" && method == "" {
		method = ChallengeS256
	}
	if challenge != "" && method != ChallengeS256 && method != ChallengePlain {
		return nil, oauth.NewError(oauth.ErrInvalidRequest, "code_challenge_method must be S256 or plain")
	}
	if cl.ClientType == client.TypePublic && challenge == "" {
		return nil, oauth.NewError(oauth.ErrInvalidRequest, "PKCE is required for public clients")
	}

	code, err := secrets.RandomHex(32)
	if err != nil {
		return nil, fmt.Errorf("generate authorization code: %w", err)
	}

	ac := &AuthorizationCode{
		Code:                code,
		ClientID:            req.ClientID,
		UserID:              req.UserID,
		RedirectURI:         req.RedirectURI,
		Scope:               negotiated,
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
		FHIRUser:            "Practitioner/" + req.UserID,
		ExpiresAt:           time.Now().Add(s.codeTTL),
	}

	if req.Launch != "" {
		lc, err := s.launches.Consume(ctx, req.Launch)
		if err != nil {
			return nil, fmt.Errorf("resolve launch context: %w", err)
		}
		if lc == nil {
			return nil, oauth.NewError(oauth.ErrInvalidRequest, "invalid or expired launch context")
		}
		ac.LaunchPatient = lc.Patient
		ac.LaunchEncounter = lc.Encounter
		if lc.FHIRUser != "" {
			ac.FHIRUser = lc.FHIRUser
		}
	}

	if err := s.repo.Create(ctx, ac); err != nil {
		return nil, fmt.Errorf("store authorization code: %w", err)
	}

	return &Grant{Code: code, State: req.State}, nil
}

// Consume burns a code on behalf of the token endpoint.
func (s *Service) Consume(ctx context.Context, code string) (*AuthorizationCode, error) {
	return s.repo.Consume(ctx, code)
}
