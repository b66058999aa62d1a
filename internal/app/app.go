// Package app wires the thriftctl client from its configuration.
package app

import (
	"context"
	"io"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/thriftmarket/internal/api"
	"github.com/xenking/thriftmarket/internal/cli"
	"github.com/xenking/thriftmarket/internal/endpoint"
	"github.com/xenking/thriftmarket/internal/session"
	"github.com/xenking/thriftmarket/pkg/health"
)

// Run creates all dependencies and executes the command in args. It is the
// single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config, args []string) error {
	lg.Debug("Initializing", zap.String("store", cfg.Store), zap.Strings("args", args))

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			lg.Warn("Close store", zap.Error(err))
		}
	}()

	c, err := Build(cfg, Deps{
		Store:          store,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return err
	}
	return c.Run(ctx, args)
}

// Deps are the external dependencies of Build. Nil telemetry providers select
// no-op ones; nil streams select stdin and stdout.
type Deps struct {
	Store          endpoint.Store
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	In  io.Reader
	Out io.Writer
}

// Build assembles the API client, endpoint manager, session and command tree.
func Build(cfg *Config, deps Deps) (*cli.CLI, error) {
	var endpoints session.Endpoints
	client := api.NewClient(func(ctx context.Context) (string, error) {
		return endpoints.Base(ctx)
	}, api.Options{
		Timeout:            cfg.Timeout,
		UserAgent:          cfg.UserAgent,
		SkipBrowserWarning: cfg.SkipBrowserWarning,
		TracerProvider:     deps.TracerProvider,
		MeterProvider:      deps.MeterProvider,
	})

	mgr := endpoint.NewManager(deps.Store, client)
	endpoints = mgr
	if cfg.Base != "" {
		base, err := endpoint.Check(cfg.Base)
		if err != nil {
			return nil, errors.Wrap(err, "base override")
		}
		endpoints = fixedBase{Manager: mgr, base: base}
	}

	sess, err := session.New(client, endpoints, session.Options{
		PageSize:                cfg.PageSize,
		RefreshProductsOnCreate: cfg.RefreshProductsOnCreate,
		TracerProvider:          deps.TracerProvider,
		MeterProvider:           deps.MeterProvider,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create session")
	}

	return cli.New(sess, client, cli.Options{
		PageSize: cfg.PageSize,
		Watch: health.Options{
			Interval:         cfg.WatchInterval,
			Timeout:          cfg.WatchTimeout,
			FailureThreshold: cfg.WatchFailures,
			SuccessThreshold: cfg.WatchSuccesses,
		},
		In:  deps.In,
		Out: deps.Out,
	}), nil
}

// fixedBase serves a base given on the command line instead of the saved
// one. Configuring a new base still saves it for later runs.
type fixedBase struct {
	*endpoint.Manager
	base string
}

func (f fixedBase) Base(context.Context) (string, error) {
	return f.base, nil
}
