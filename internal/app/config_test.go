package app

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with an empty user config dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)

	cfg, args, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Empty(t, args)

	assert.Equal(t, 12, cfg.PageSize)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "thriftctl", cfg.UserAgent)
	assert.True(t, cfg.SkipBrowserWarning)
	assert.False(t, cfg.RefreshProductsOnCreate)
	assert.Equal(t, 10*time.Second, cfg.WatchInterval)
	assert.Equal(t, 3, cfg.WatchFailures)
	assert.Equal(t, StoreFile, cfg.Store)
	assert.Equal(t, "thriftctl:", cfg.RedisPrefix)
}

func TestLoadConfig_EnvAndFlags(t *testing.T) {
	isolate(t)
	t.Setenv("THRIFT_PAGE_SIZE", "20")
	t.Setenv("THRIFT_SKIP_BROWSER_WARNING", "false")

	cfg, args, err := LoadConfig([]string{"--timeout=5s", "products", "--page", "2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"products", "--page", "2"}, args)
	assert.Equal(t, 20, cfg.PageSize)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.False(t, cfg.SkipBrowserWarning)

	cfg, _, err = LoadConfig([]string{"--page-size=7"})
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.PageSize, "flags win over the environment")
}

func TestLoadConfig_File(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "thriftctl.yaml"), []byte(
		"page_size: 30\nuser_agent: yaml-agent\nrefresh_products_on_create: true\n",
	), 0o600))

	cfg, _, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.PageSize)
	assert.Equal(t, "yaml-agent", cfg.UserAgent)
	assert.True(t, cfg.RefreshProductsOnCreate)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("THRIFT_USER_AGENT=dotenv-agent\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("THRIFT_USER_AGENT") })

	cfg, _, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "dotenv-agent", cfg.UserAgent)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("DATABASE_URL", "postgres://db/thrift")

	cfg, _, err := LoadConfig([]string{"--store=Redis"})
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.Store)
	assert.Equal(t, "redis://cache:6379/0", cfg.RedisURL)
	assert.Equal(t, "postgres://db/thrift", cfg.DatabaseURL)

	t.Setenv("THRIFT_REDIS_URL", "redis://own:6379/1")
	cfg, _, err = LoadConfig([]string{"--store=redis"})
	require.NoError(t, err)
	assert.Equal(t, "redis://own:6379/1", cfg.RedisURL, "prefixed variable wins")
}

func TestLoadConfig_Invalid(t *testing.T) {
	isolate(t)

	for _, tc := range []struct {
		name string
		args []string
		msg  string
	}{
		{"PageSize", []string{"--page-size=0"}, "page size must be positive"},
		{"Timeout", []string{"--timeout=-1s"}, "timeout must not be negative"},
		{"UnknownStore", []string{"--store=sqlite"}, `unknown store "sqlite"`},
		{"RedisWithoutURL", []string{"--store=redis"}, "redis URL is required"},
		{"PostgresWithoutURL", []string{"--store=postgres"}, "database URL is required"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := LoadConfig(tc.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestLoadConfig_Help(t *testing.T) {
	isolate(t)

	_, _, err := LoadConfig([]string{"-h"})
	require.ErrorIs(t, err, flag.ErrHelp)
}
