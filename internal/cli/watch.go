package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/thriftmarket/pkg/health"
)

var errNotOK = errors.New("health check did not report ok")

// watch probes base until ctx is done, printing every change of health.
func (c *CLI) watch(ctx context.Context, base string, opts health.Options) error {
	opts.OnChange = func(t health.Transition) {
		at := t.At.Format(time.TimeOnly)
		if t.Healthy {
			fmt.Fprintf(c.out, "%s %s healthy\n", at, base)
			return
		}
		fmt.Fprintf(c.out, "%s %s unhealthy: %v\n", at, base, t.Err)
	}

	m := health.NewMonitor(func(ctx context.Context) error {
		ok, err := c.backend.Health(ctx, base)
		if err != nil {
			return err
		}
		if !ok {
			return errNotOK
		}
		return nil
	}, opts)

	fmt.Fprintf(c.out, "watching %s; interrupt to stop\n", base)
	return m.Run(ctx)
}
