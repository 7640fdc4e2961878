package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ehr/smart-auth/internal/domain/authorize"
	"github.com/ehr/smart-auth/internal/domain/client"
	"github.com/ehr/smart-auth/internal/domain/launch"
	"github.com/ehr/smart-auth/internal/domain/token"
	"github.com/ehr/smart-auth/internal/platform/cache"
	"github.com/ehr/smart-auth/internal/platform/db"
	"github.com/ehr/smart-auth/internal/platform/keys"
)

// globalPool is the shared test database, initialized once in TestMain.
var globalPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr, cleanup, err := startPostgresContainer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup postgres container: %v\n", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}

	if err := db.Migrate(ctx, pool, []string{
		client.Migration,
		launch.Migration,
		authorize.Migration,
		token.Migration,
	}); err != nil {
		pool.Close()
		cleanup()
		fmt.Fprintf(os.Stderr, "failed to apply schema: %v\n", err)
		os.Exit(1)
	}

	globalPool = pool
	code := m.Run()
	pool.Close()
	cleanup()
	os.Exit(code)
}

// services bundles a fully wired authorization server backed by the shared
// test database.
type services struct {
	Clients   *client.Service
	Launches  *launch.Service
	Authorize *authorize.Service
	Tokens    *token.Service
}

func newServices(t *testing.T) *services {
	t.Helper()

	km, err := keys.Generate()
	if err != nil {
		t.Fatalf("generate signing key: %v", err)
	}

	clientSvc := client.NewService(client.NewRepo(globalPool), "default")
	launchSvc := launch.NewService(launch.NewPGStoreFromPool(globalPool, 5*time.Minute))
	authorizeSvc := authorize.NewService(authorize.NewRepo(globalPool), clientSvc, launchSvc, 5*time.Minute)
	tokenSvc := token.NewService(
		token.NewRepo(globalPool),
		clientSvc,
		authorizeSvc,
		km,
		cache.NewMemoryCache(),
		zerolog.Nop(),
		"https://auth.test.example.org",
		time.Hour,
		30*24*time.Hour,
	)

	return &services{
		Clients:   clientSvc,
		Launches:  launchSvc,
		Authorize: authorizeSvc,
		Tokens:    tokenSvc,
	}
}
