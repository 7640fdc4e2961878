package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	entry := &Entry{
		ClientID:  "client-1",
		UserID:    "user-1",
		Scope:     "openid patient/Patient.read",
		Patient:   "Patient/123",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := c.Set(ctx, "abc", entry, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := c.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected hit")
	}
	if got.ClientID != "client-1" || got.Patient != "Patient/123" {
		t.Errorf("unexpected entry: %+v", got)
	}

	// Mutating the returned entry must not affect the cached copy.
	got.Revoked = true
	again, _ := c.Get(ctx, "abc")
	if again.Revoked {
		t.Error("cache returned a shared entry")
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	c := NewMemoryCache()
	got, err := c.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("expected miss, got %+v", got)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "short", &Entry{ClientID: "c"}, time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	got, err := c.Get(ctx, "short")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Error("expected expired entry to be a miss")
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	c.Set(ctx, "k", &Entry{ClientID: "c"}, time.Minute)
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := c.Get(ctx, "k"); got != nil {
		t.Error("expected delete to evict entry")
	}
	// Deleting a missing key is not an error.
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestMemoryCacheNonPositiveTTL(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	if err := c.Set(ctx, "k", &Entry{}, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, _ := c.Get(ctx, "k"); got != nil {
		t.Error("expected zero-TTL set to be a no-op")
	}
}
