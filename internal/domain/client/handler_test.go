package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestServer(t *testing.T) (*echo.Echo, *Service) {
	t.Helper()
	svc := NewService(newFakeRepo(), "default")
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))
	return e, svc
}

func TestRegisterEndpointReturnsSecretOnce(t *testing.T) {
	e, _ := newTestServer(t)

	body := `{
		"name": "Cardiology Dashboard",
		"redirect_uris": ["https://cardio.example.org/callback"],
		"scope": "openid patient/Patient.read",
		"client_type": "confidential"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/clients", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	secret, _ := resp["client_secret"].(string)
	if secret == "" {
		t.Fatal("expected client_secret in registration response")
	}
	if _, present := resp["secret_hash"]; present {
		t.Error("secret_hash must never be serialized")
	}

	// Any later read must not include the secret.
	id, _ := resp["id"].(string)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/clients/"+id, nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), secret) {
		t.Error("client secret appeared in a second response")
	}
}

func TestRegisterEndpointRejectsBadPayload(t *testing.T) {
	e, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/clients",
		strings.NewReader(`{"name":"x","client_type":"confidential"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestListEndpointPaginates(t *testing.T) {
	e, svc := newTestServer(t)

	for i := 0; i < 3; i++ {
		req := confidentialRequest()
		req.ClientType = TypePublic
		if _, _, err := svc.Register(httptest.NewRequest(http.MethodGet, "/", nil).Context(), req); err != nil {
			t.Fatalf("seed client: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/clients?limit=2&offset=0", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Data  []json.RawMessage `json:"data"`
		Total int               `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 2 || resp.Total != 3 {
		t.Errorf("expected 2 of 3 clients, got %d of %d", len(resp.Data), resp.Total)
	}
}

func TestDeactivateEndpoint(t *testing.T) {
	e, svc := newTestServer(t)

	created, _, err := svc.Register(httptest.NewRequest(http.MethodGet, "/", nil).Context(), confidentialRequest())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/clients/"+created.ID.String(), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/clients/"+created.ID.String(), nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after deactivation, got %d", rec.Code)
	}
}
