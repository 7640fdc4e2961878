package authorize

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ehr/smart-auth/internal/domain/client"
	"github.com/ehr/smart-auth/internal/domain/launch"
	"github.com/ehr/smart-auth/internal/platform/oauth"
)

// fakeRepo reproduces the conditional-update consume semantics in memory.
type fakeRepo struct {
	mu    sync.Mutex
	codes map[string]*AuthorizationCode
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{codes: make(map[string]*AuthorizationCode)}
}

func (f *fakeRepo) Create(_ context.Context, code *AuthorizationCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[code.Code] = code
	return nil
}

func (f *fakeRepo) Consume(_ context.Context, code string) (*AuthorizationCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ac, ok := f.codes[code]
	if !ok || ac.Used {
		return nil, nil
	}
	ac.Used = true
	cp := *ac
	return &cp, nil
}

type fakeClients struct {
	clients map[string]*client.Client
}

func (f *fakeClients) Get(_ context.Context, clientID string) (*client.Client, error) {
	c, ok := f.clients[clientID]
	if !ok {
		return nil, client.ErrNotFound
	}
	return c, nil
}

type fakeLaunches struct {
	contexts map[string]*launch.LaunchContext
}

func (f *fakeLaunches) Consume(_ context.Context, token string) (*launch.LaunchContext, error) {
	lc, ok := f.contexts[token]
	if !ok {
		return nil, nil
	}
	delete(f.contexts, token)
	return lc, nil
}

func testService() (*Service, *fakeRepo, *fakeLaunches) {
	repo := newFakeRepo()
	clients := &fakeClients{clients: map[string]*client.Client{
		"pub-client": {
			ClientID:     "pub-client",
			ClientType:   client.TypePublic,
			RedirectURIs: []string{"https://app.example.org/callback"},
			Scope:        "openid fhirUser launch launch/patient patient/Patient.read offline_access",
			Active:       true,
		},
		"conf-client": {
			ClientID:     "conf-client",
			ClientType:   client.TypeConfidential,
			RedirectURIs: []string{"https://backend.example.org/cb"},
			Scope:        "openid user/Observation.read",
			Active:       true,
		},
	}}
	launches := &fakeLaunches{contexts: map[string]*launch.LaunchContext{
		"launch-tok": {
			LaunchToken: "launch-tok",
			Patient:     "Patient/123",
			Encounter:   "Encounter/456",
			FHIRUser:    "Practitioner/dr-smith",
			CreatedAt:   time.Now(),
		},
	}}
	return NewService(repo, clients, launches, 5*time.Minute), repo, launches
}

func validRequest() *Request {
	return &Request{
		ResponseType:        "code",
		ClientID:            "pub-client",
		RedirectURI:         "https://app.example.org/callback",
		Scope:               "openid patient/Patient.read",
		State:               "xyz",
		CodeChallenge:       "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		CodeChallengeMethod: "S256",
		UserID:              "user-1",
	}
}

func oauthCode(t *testing.T, err error) string {
	t.Helper()
	var oerr *oauth.Error
	if !errors.As(err, &oerr) {
		t.Fatalf("expected oauth error, got %v", err)
	}
	return oerr.Code
}

func TestAuthorizeIssuesCode(t *testing.T) {
	svc, repo, _ := testService()

	grant, err := svc.Authorize(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if len(grant.Code) != 64 {
		t.Errorf("expected 32-byte hex code, got %q", grant.Code)
	}
	if grant.State != "xyz" {
		t.Errorf("state = %q", grant.State)
	}

	stored := repo.codes[grant.Code]
	if stored == nil {
		t.Fatal("code not persisted")
	}
	if stored.UserID != "user-1" || stored.FHIRUser != "Practitioner/user-1" {
		t.Errorf("unexpected binding: %+v", stored)
	}
	if stored.Used {
		t.Error("new code must not be marked used")
	}
}

func TestAuthorizeValidationOrder(t *testing.T) {
	svc, _, _ := testService()
	ctx := context.Background()

	cases := []struct {
		name     string
		mutate   func(*Request)
		wantCode string
	}{
		{"bad response type", func(r *Request) { r.ResponseType = "token" }, oauth.ErrUnsupportedResponseType},
		{"no user", func(r *Request) { r.UserID = "" }, oauth.ErrInvalidRequest},
		{"unknown client", func(r *Request) { r.ClientID = "ghost" }, oauth.ErrInvalidRequest},
		{"unregistered redirect", func(r *Request) { r.RedirectURI = "https://evil.example.org/cb" }, oauth.ErrInvalidRequest},
		{"invalid scope", func(r *Request) { r.Scope = "patient/Patient.delete" }, oauth.ErrInvalidScope},
		{"scope outside registration", func(r *Request) { r.Scope = "system/*.*" }, oauth.ErrInvalidScope},
		{"bad challenge method", func(r *Request) { r.CodeChallengeMethod = "S512" }, oauth.ErrInvalidRequest},
		{"public client without PKCE", func(r *Request) { r.CodeChallenge = ""; r.CodeChallengeMethod = "" }, oauth.ErrInvalidRequest},
	}
	for _, tc := range cases {
		req := validRequest()
		tc.mutate(req)
		_, err := svc.Authorize(ctx, req)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if got := oauthCode(t, err); got != tc.wantCode {
			t.Errorf("%s: error code = %q, want %q", tc.name, got, tc.wantCode)
		}
	}
}

func TestAuthorizeErrorRedirectPolicy(t *testing.T) {
	svc, _, _ := testService()
	ctx := context.Background()

	cases := []struct {
		name       string
		mutate     func(*Request)
		noRedirect bool
	}{
		{"bad response type", func(r *Request) { r.ResponseType = "token" }, true},
		{"no user", func(r *Request) { r.UserID = "" }, true},
		{"unknown client", func(r *Request) { r.ClientID = "ghost" }, true},
		{"unregistered redirect", func(r *Request) { r.RedirectURI = "https://evil.example.org/cb" }, true},
		{"invalid scope", func(r *Request) { r.Scope = "patient/Patient.delete" }, false},
		{"public client without PKCE", func(r *Request) { r.CodeChallenge = ""; r.CodeChallengeMethod = "" }, false},
	}
	for _, tc := range cases {
		req := validRequest()
		tc.mutate(req)
		_, err := svc.Authorize(ctx, req)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if got := NoRedirect(err); got != tc.noRedirect {
			t.Errorf("%s: NoRedirect = %v, want %v", tc.name, got, tc.noRedirect)
		}
	}
}

func TestAuthorizeDropsUnregisteredScopes(t *testing.T) {
	svc, repo, _ := testService()

	req := validRequest()
	req.Scope = "openid patient/Patient.read user/Observation.write"
	grant, err := svc.Authorize(context.Background(), req)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	stored := repo.codes[grant.Code]
	if strings.Contains(stored.Scope, "Observation") {
		t.Errorf("unregistered scope survived: %q", stored.Scope)
	}
}

func TestAuthorizeChallengeMethodDefaultsToS256(t *testing.T) {
	svc, repo, _ := testService()

	req := validRequest()
	req.CodeChallengeMethod = ""
	grant, err := svc.Authorize(context.Background(), req)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if repo.codes[grant.Code].CodeChallengeMethod != ChallengeS256 {
		t.Errorf("method = %q, want S256", repo.codes[grant.Code].CodeChallengeMethod)
	}
}

func TestAuthorizeBindsLaunchContext(t *testing.T) {
	svc, repo, launches := testService()

	req := validRequest()
	req.Launch = "launch-tok"
	req.Scope = "openid launch launch/patient patient/Patient.read"
	grant, err := svc.Authorize(context.Background(), req)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	stored := repo.codes[grant.Code]
	if stored.LaunchPatient != "Patient/123" || stored.LaunchEncounter != "Encounter/456" {
		t.Errorf("launch context not bound: %+v", stored)
	}
	if stored.FHIRUser != "Practitioner/dr-smith" {
		t.Errorf("launch fhir_user not bound: %q", stored.FHIRUser)
	}

	// Token was consumed; a second authorize with the same launch fails.
	if len(launches.contexts) != 0 {
		t.Error("launch token not consumed")
	}
	req2 := validRequest()
	req2.Launch = "launch-tok"
	if _, err := svc.Authorize(context.Background(), req2); err == nil {
		t.Error("expected error for reused launch token")
	}
}

func TestConsumeIsSingleUse(t *testing.T) {
	svc, _, _ := testService()
	ctx := context.Background()

	grant, err := svc.Authorize(ctx, validRequest())
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	first, err := svc.Consume(ctx, grant.Code)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if first == nil || !first.Used {
		t.Fatalf("unexpected first consume: %+v", first)
	}

	second, err := svc.Consume(ctx, grant.Code)
	if err != nil {
		t.Fatalf("second Consume: %v", err)
	}
	if second != nil {
		t.Error("expected second consume to return nil")
	}
}
