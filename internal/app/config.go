package app

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds the complete client configuration, loadable from environment
// variables (THRIFT_ prefix), global flags, or YAML config files.
//
// Global flags go before the command and take the --name=value form.
type Config struct {
	Base                    string        `env:"BASE" flag:"base" yaml:"base" usage:"API base for this run only; the saved base is left untouched"`
	PageSize                int           `env:"PAGE_SIZE" flag:"page-size" yaml:"page_size" default:"12" usage:"Items per list page"`
	Timeout                 time.Duration `env:"TIMEOUT" flag:"timeout" yaml:"timeout" default:"30s" usage:"Per-request timeout, 0 disables"`
	UserAgent               string        `env:"USER_AGENT" flag:"user-agent" yaml:"user_agent" default:"thriftctl" usage:"User-Agent header"`
	SkipBrowserWarning      bool          `env:"SKIP_BROWSER_WARNING" flag:"skip-browser-warning" yaml:"skip_browser_warning" default:"true" usage:"Ask tunnels not to serve their HTML warning page"`
	RefreshProductsOnCreate bool          `env:"REFRESH_PRODUCTS_ON_CREATE" flag:"refresh-products-on-create" yaml:"refresh_products_on_create" default:"false" usage:"Reload products after creating an order"`

	WatchInterval  time.Duration `env:"WATCH_INTERVAL" flag:"watch-interval" yaml:"watch_interval" default:"10s" usage:"Health watch interval"`
	WatchTimeout   time.Duration `env:"WATCH_TIMEOUT" flag:"watch-timeout" yaml:"watch_timeout" default:"5s" usage:"Health watch probe timeout"`
	WatchFailures  int           `env:"WATCH_FAILURES" flag:"watch-failures" yaml:"watch_failures" default:"3" usage:"Consecutive failures before reporting unhealthy"`
	WatchSuccesses int           `env:"WATCH_SUCCESSES" flag:"watch-successes" yaml:"watch_successes" default:"1" usage:"Consecutive successes before reporting healthy"`

	Store       string `env:"STORE" flag:"store" yaml:"store" default:"file" usage:"Where the API base is saved: file, redis or postgres"`
	StateFile   string `env:"STATE_FILE" flag:"state-file" yaml:"state_file" usage:"State file of the file store (default <user config dir>/thriftctl/state.json)"`
	RedisURL    string `env:"REDIS_URL" flag:"redis-url" yaml:"redis_url" usage:"Redis URL of the redis store (THRIFT_REDIS_URL or REDIS_URL)"`
	RedisPrefix string `env:"REDIS_PREFIX" flag:"redis-prefix" yaml:"redis_prefix" default:"thriftctl:" usage:"Key prefix of the redis store"`
	DatabaseURL string `env:"DATABASE_URL" flag:"database-url" yaml:"database_url" usage:"PostgreSQL URL of the postgres store (THRIFT_DATABASE_URL or DATABASE_URL)"`
}

// LoadConfig loads configuration from a .env file, environment variables,
// YAML config files and the global flags in args, and applies platform
// defaults. It returns the arguments left after the global flags: the
// command and its own arguments.
func LoadConfig(args []string) (*Config, []string, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "THRIFT",
		Files:     configFiles(),
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
		Args:      args,
		SkipFlags: len(args) == 0,
	})
	if err := loader.Load(); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, nil, flag.ErrHelp
		}
		return nil, nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}
	rest := []string{}
	if len(args) > 0 {
		rest = loader.Flags().Args()
	}
	return &cfg, rest, nil
}

// configFiles lists YAML files in increasing priority.
func configFiles() []string {
	files := []string{"thriftctl.yaml"}
	if dir, err := os.UserConfigDir(); err == nil {
		files = append(files, filepath.Join(dir, "thriftctl", "config.yaml"))
	}
	return files
}

// applyPlatformDefaults maps environment variables with standard names such
// as DATABASE_URL and REDIS_URL to the THRIFT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.RedisURL == "" {
		if v := os.Getenv("REDIS_URL"); v != "" {
			c.RedisURL = v
		}
	}
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
}

func (c *Config) validate() error {
	if c.PageSize <= 0 {
		return errors.Errorf("page size must be positive, got %d", c.PageSize)
	}
	if c.Timeout < 0 {
		return errors.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	switch c.Store {
	case StoreFile:
	case StoreRedis:
		if c.RedisURL == "" {
			return errors.New("redis URL is required: set THRIFT_REDIS_URL or REDIS_URL")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set THRIFT_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown store %q: want file, redis or postgres", c.Store)
	}
	return nil
}
