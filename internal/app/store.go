package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/thriftmarket/internal/endpoint"
	"github.com/xenking/thriftmarket/internal/storage/file"
	"github.com/xenking/thriftmarket/internal/storage/postgres"
	"github.com/xenking/thriftmarket/internal/storage/redis"
)

// Store is a setting store holding connections that must be released.
type Store interface {
	endpoint.Store
	Close() error
}

// OpenStore opens the store backend selected by cfg.
func OpenStore(ctx context.Context, cfg *Config) (Store, error) {
	switch cfg.Store {
	case StoreFile:
		path := cfg.StateFile
		if path == "" {
			p, err := file.DefaultPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		s := file.New(path)
		zctx.From(ctx).Debug("Using file store", zap.String("path", s.Path()))
		return nopCloser{s}, nil
	case StoreRedis:
		s, err := redis.Dial(ctx, cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, errors.Wrap(err, "redis")
		}
		return s, nil
	case StorePostgres:
		s, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "postgres")
		}
		return s, nil
	default:
		return nil, errors.Errorf("unknown store %q", cfg.Store)
	}
}

type nopCloser struct {
	endpoint.Store
}

func (nopCloser) Close() error { return nil }
