// Package cache provides the Redis-backed token cache. The cache is a
// read-through layer in front of the token store: every caller treats a cache
// failure as a miss, so the database remains authoritative and the service
// keeps working when Redis is down.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is the cached view of an issued token, keyed by the SHA-256 hash of
// the raw access or refresh token.
type Entry struct {
	ClientID  string    `json:"client_id"`
	UserID    string    `json:"user_id"`
	Scope     string    `json:"scope"`
	Patient   string    `json:"patient,omitempty"`
	Encounter string    `json:"encounter,omitempty"`
	FHIRUser  string    `json:"fhir_user,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
}

// TokenCache is the cache-aside interface used by the token service. Get
// returns (nil, nil) on a miss.
type TokenCache interface {
	Get(ctx context.Context, hash string) (*Entry, error)
	Set(ctx context.Context, hash string, entry *Entry, ttl time.Duration) error
	Delete(ctx context.Context, hash string) error
}

// NewRedisClient builds a go-redis client from a redis:// URL and verifies
// connectivity with a short ping.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}
