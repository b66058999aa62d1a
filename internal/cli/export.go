package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/thriftmarket/internal/api"
	"github.com/xenking/thriftmarket/internal/domain/product"
	"github.com/xenking/thriftmarket/internal/listing"
)

// export writes every product matching f as JSON lines to output, or to the
// CLI output when empty. Pages are fetched while earlier ones are written.
func (c *CLI) export(ctx context.Context, f product.Filter, output string) (n int, rerr error) {
	var w io.Writer = c.out
	if output != "" {
		file, err := os.Create(output)
		if err != nil {
			return 0, errors.Wrap(err, "create output")
		}
		defer func() {
			if err := file.Close(); err != nil && rerr == nil {
				rerr = errors.Wrap(err, "close output")
			}
		}()
		w = file

		if strings.HasSuffix(output, ".gz") {
			gz := pgzip.NewWriter(file)
			defer func() {
				if err := gz.Close(); err != nil && rerr == nil {
					rerr = errors.Wrap(err, "close gzip")
				}
			}()
			w = gz
		}
	}

	pages := make(chan []product.Product, 2)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(pages)
		return listing.Walk(ctx, c.backend.ListProducts, f, c.opts.PageSize, func(items []product.Product) error {
			select {
			case pages <- items:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})
	g.Go(func() error {
		bw := bufio.NewWriter(w)
		for items := range pages {
			for _, p := range items {
				if _, err := bw.Write(api.MarshalProduct(p)); err != nil {
					return errors.Wrap(err, "write product")
				}
				if err := bw.WriteByte('\n'); err != nil {
					return errors.Wrap(err, "write product")
				}
				n++
			}
		}
		if err := bw.Flush(); err != nil {
			return errors.Wrap(err, "flush output")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return n, err
	}
	return n, nil
}
