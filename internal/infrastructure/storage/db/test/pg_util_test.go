package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/watchdescriptor/internal/core/ports"
	postgresdb "github.com/tdex-network/watchdescriptor/internal/infrastructure/storage/db/pg"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPgDatastore starts a postgres container and returns a datastore
// connected to it. The test is skipped in short mode or if docker is not
// available.
func setupPgDatastore(t *testing.T) (ports.Datastore, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres datastore in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("watchdescriptor-test"),
		postgres.WithUsername("root"),
		postgres.WithPassword("secret"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	datastore, err := postgresdb.NewDatastore(ctx, dsn)
	require.NoError(t, err, "failed to connect to postgres")

	cleanup := func() {
		datastore.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	return datastore, cleanup
}
