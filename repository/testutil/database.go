package testutil

import (
	"context"
	"testing"

	"fundsledger/database"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const postgresImage = "postgres:16-alpine"

// TestDatabase is a migrated ledger schema in a throwaway postgres container
type TestDatabase struct {
	Container *postgres.PostgresContainer
	DB        *database.DB
	URL       string
}

// SetupTestDatabase starts a container, applies the ledger migrations and opens
// a pool. The pool and container are released when the test ends.
func SetupTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		postgresImage,
		postgres.WithDatabase("funds_ledger_test"),
		postgres.WithUsername("ledger"),
		postgres.WithPassword("ledger"),
		postgres.BasicWaitStrategies(),
		testcontainers.WithLabels(map[string]string{
			"service":   "funds-ledger",
			"test-name": t.Name(),
		}),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, database.RunMigrationsWithURL(url), "ledger migrations must apply cleanly")

	db, err := database.NewConnection(ctx, url, 4)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return &TestDatabase{Container: container, DB: db, URL: url}
}
