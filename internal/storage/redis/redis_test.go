//go:build integration

package redis

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

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	s, err := Dial(ctx, startRedis(t), DefaultPrefix)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Get(ctx, endpoint.StorageKey)
	require.ErrorIs(t, err, endpoint.ErrNotFound)

	require.NoError(t, s.Set(ctx, endpoint.StorageKey, "https://a.example.com"))
	v, err := s.Get(ctx, endpoint.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, "https://a.example.com", v)

	raw, err := s.rdb.Get(ctx, DefaultPrefix+endpoint.StorageKey).Result()
	require.NoError(t, err)
	assert.Equal(t, "https://a.example.com", raw)
}
