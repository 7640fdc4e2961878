package launch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestCreateEndpoint(t *testing.T) {
	store, _ := newTestStore(5 * time.Minute)
	svc := NewService(store)
	e := echo.New()
	NewHandler(svc, 5*time.Minute).RegisterRoutes(e.Group("/auth"))

	body := `{"patient":"Patient/123","encounter":"Encounter/456","fhir_user":"Practitioner/dr-smith"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/launch", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp createResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Launch == "" {
		t.Fatal("expected launch token")
	}
	if resp.ExpiresIn != 300 {
		t.Errorf("expires_in = %d, want 300", resp.ExpiresIn)
	}

	lc, err := svc.Consume(context.Background(), resp.Launch)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if lc == nil || lc.Patient != "Patient/123" {
		t.Errorf("unexpected consumed context: %+v", lc)
	}
}

func TestCreateEndpointRequiresContext(t *testing.T) {
	store, _ := newTestStore(5 * time.Minute)
	e := echo.New()
	NewHandler(NewService(store), 5*time.Minute).RegisterRoutes(e.Group("/auth"))

	req := httptest.NewRequest(http.MethodPost, "/auth/launch", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty launch, got %d", rec.Code)
	}
}
