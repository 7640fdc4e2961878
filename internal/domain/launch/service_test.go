package launch

import (
	"context"
	"testing"
	"time"
)

func TestCreateRequiresContext(t *testing.T) {
	store, _ := newTestStore(5 * time.Minute)
	svc := NewService(store)

	if _, err := svc.Create(context.Background(), "", "", "", ""); err == nil {
		t.Error("expected error for launch without patient or fhir_user")
	}
}

func TestCleanupRemovesExpiredContexts(t *testing.T) {
	store, mock := newTestStore(50 * time.Millisecond)
	svc := NewService(store)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "Patient/1", "", "", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, "", "", "Practitioner/dr-smith", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := svc.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	mock.mu.Lock()
	remaining := len(mock.rows)
	mock.mu.Unlock()
	if remaining != 0 {
		t.Errorf("expected 0 rows after cleanup, got %d", remaining)
	}
}
