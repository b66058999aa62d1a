// Package cli implements the thriftctl command tree and interactive shell.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/xenking/thriftmarket/internal/api"
	"github.com/xenking/thriftmarket/internal/domain/page"
	"github.com/xenking/thriftmarket/internal/domain/product"
	"github.com/xenking/thriftmarket/internal/session"
	"github.com/xenking/thriftmarket/pkg/health"
)

// Backend is the part of the API used outside the session.
type Backend interface {
	Health(ctx context.Context, base string) (bool, error)
	ListProducts(ctx context.Context, f product.Filter, cur page.Cursor) (api.List[product.Product], error)
}

var _ Backend = (*api.Client)(nil)

// Options configures a CLI.
type Options struct {
	// Watch configures the health monitor of the watch command.
	Watch health.Options
	// PageSize is the page size used by export.
	PageSize int

	In  io.Reader
	Out io.Writer
}

// CLI runs thriftctl commands against a session.
type CLI struct {
	sess    *session.Session
	backend Backend
	opts    Options
	out     io.Writer

	// list is the view next and prev move when not told otherwise.
	list    string
	inShell bool
}

// List names.
const (
	listProducts = "products"
	listOrders   = "orders"
)

// New creates a CLI.
func New(sess *session.Session, backend Backend, opts Options) *CLI {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.PageSize <= 0 {
		opts.PageSize = page.DefaultLimit
	}
	return &CLI{
		sess:    sess,
		backend: backend,
		opts:    opts,
		out:     opts.Out,
		list:    listProducts,
	}
}

// Run executes one command line.
func (c *CLI) Run(ctx context.Context, args []string) error {
	if args == nil {
		// cobra falls back to os.Args for nil.
		args = []string{}
	}
	root := c.root()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (c *CLI) root() *cobra.Command {
	root := &cobra.Command{
		Use:   "thriftctl",
		Short: "Browse a secondhand marketplace and manage its orders",
		Long: `thriftctl talks to a secondhand marketplace API.

Configure the API base once with "thriftctl base <url>"; it is saved and
used by every later command. Global settings such as --page-size=N or
--store=redis go before the command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(c.out)
	root.SetErr(c.out)
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddGroup(
		&cobra.Group{ID: "setup", Title: "Setup:"},
		&cobra.Group{ID: "browse", Title: "Browsing:"},
		&cobra.Group{ID: "orders", Title: "Order actions:"},
	)
	root.AddCommand(
		c.baseCmd(),
		c.healthCmd(),
		c.watchCmd(),
		c.productsCmd(),
		c.ordersCmd(),
		c.nextCmd(),
		c.prevCmd(),
		c.exportCmd(),
		c.createCmd(),
		c.confirmCmd(),
		c.finishCmd(),
		c.cancelCmd(),
		c.selectCmd(),
		c.shellCmd(),
	)
	return root
}
