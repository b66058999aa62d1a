//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/thriftmarket/internal/endpoint"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "thrift",
				"POSTGRES_PASSWORD": "thrift",
				"POSTGRES_DB":       "thrift",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://thrift:thrift@%s:%s/thrift?sslmode=disable", host, port.Port())
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	dsn := startPostgres(t)

	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Get(ctx, endpoint.StorageKey)
	require.ErrorIs(t, err, endpoint.ErrNotFound)

	require.NoError(t, s.Set(ctx, endpoint.StorageKey, "https://a.example.com"))
	require.NoError(t, s.Set(ctx, endpoint.StorageKey, "https://b.example.com"))

	v, err := s.Get(ctx, endpoint.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, "https://b.example.com", v)

	// Migrations are idempotent.
	again, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = again.Close() })

	v, err = again.Get(ctx, endpoint.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, "https://b.example.com", v)
}
