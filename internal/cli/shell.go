package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/shlex"
	"go.uber.org/zap"
)

const prompt = "thrift> "

// Shell reads command lines from the input until EOF, "exit" or
// cancellation. Errors are printed and the shell keeps going.
func (c *CLI) Shell(ctx context.Context) error {
	c.inShell = true
	defer func() { c.inShell = false }()

	c.greet(ctx)

	sc := bufio.NewScanner(c.opts.In)
	for {
		fmt.Fprint(c.out, prompt)
		if !sc.Scan() {
			fmt.Fprintln(c.out)
			if err := sc.Err(); err != nil {
				return errors.Wrap(err, "read input")
			}
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		args, err := shlex.Split(sc.Text())
		if err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		switch strings.ToLower(args[0]) {
		case "exit", "quit":
			return nil
		}

		if err := c.Run(ctx, args); err != nil {
			zctx.From(ctx).Debug("Command failed", zap.Strings("args", args), zap.Error(err))
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
}

// greet shows the configured base and its first product page.
func (c *CLI) greet(ctx context.Context) {
	base, err := c.sess.Base(ctx)
	switch {
	case err != nil:
		fmt.Fprintf(c.out, "error: %v\n", err)
		return
	case base == "":
		fmt.Fprintln(c.out, "no API base configured; run: base <url>")
		return
	}

	fmt.Fprintf(c.out, "API base: %s\n", base)
	if err := c.sess.RefreshProducts(ctx); err != nil {
		fmt.Fprintf(c.out, "error: %v\n", err)
		return
	}
	c.printProducts()
}
