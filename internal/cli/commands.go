package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/xenking/thriftmarket/internal/api"
	"github.com/xenking/thriftmarket/internal/domain/order"
	"github.com/xenking/thriftmarket/internal/domain/product"
)

func (c *CLI) baseCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "base [url]",
		Short:   "Show the saved API base, or validate and save a new one",
		GroupID: "setup",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 0 {
				base, err := c.sess.Base(ctx)
				if err != nil {
					return err
				}
				if base == "" {
					fmt.Fprintln(c.out, "no API base configured; run: base <url>")
					return nil
				}
				fmt.Fprintln(c.out, base)
				return nil
			}

			base, err := c.sess.ConfigureBase(ctx, args[0])
			if base == "" {
				return err
			}
			fmt.Fprintf(c.out, "API base saved: %s\n", base)
			if err != nil {
				return err
			}
			c.list = listProducts
			c.printProducts()
			return nil
		},
	}
}

func (c *CLI) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "health [url]",
		Short:   "Probe the health endpoint of the saved base or of url",
		GroupID: "setup",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			base, err := c.targetBase(cmd, args)
			if err != nil {
				return err
			}
			ok, err := c.backend.Health(ctx, base)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(c.out, "%s: not ok\n", base)
				return nil
			}
			fmt.Fprintf(c.out, "%s: ok\n", base)
			return nil
		},
	}
}

// targetBase returns args[0] when given, or the saved base.
func (c *CLI) targetBase(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	base, err := c.sess.Base(cmd.Context())
	if err != nil {
		return "", err
	}
	if base == "" {
		return "", api.ErrNoBase
	}
	return base, nil
}

func (c *CLI) productsCmd() *cobra.Command {
	var (
		query  string
		status string
		pageN  int
	)
	cmd := &cobra.Command{
		Use:     "products",
		Short:   "List products",
		Long:    "List products. Filters not given keep their previous value in the shell.",
		GroupID: "browse",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			f := c.sess.Products().Filter
			if cmd.Flags().Changed("query") {
				f.Query = query
			}
			if cmd.Flags().Changed("status") {
				st, err := product.ParseStatus(status)
				if err != nil {
					return err
				}
				f.Status = st
			}

			if err := c.sess.SearchProducts(ctx, f); err != nil {
				return err
			}
			if pageN > 0 {
				if err := c.sess.SeekProducts(ctx, pageN); err != nil {
					return err
				}
			}
			c.list = listProducts
			c.printProducts()
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "search text")
	cmd.Flags().StringVar(&status, "status", string(product.StatusOnSale), "onsale, sold, delisted or all")
	cmd.Flags().IntVar(&pageN, "page", 0, "jump to page N")
	return cmd
}

func (c *CLI) ordersCmd() *cobra.Command {
	var (
		role   string
		viewer int64
		status string
		pageN  int
	)
	cmd := &cobra.Command{
		Use:     "orders",
		Short:   "List orders of a buyer or seller",
		Long:    "List orders seen as a buyer or seller. Filters not given keep their previous value in the shell.",
		GroupID: "browse",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			f := c.sess.Orders().Filter
			if cmd.Flags().Changed("role") {
				r, err := order.ParseRole(role)
				if err != nil {
					return err
				}
				f.Role = r
			}
			if cmd.Flags().Changed("viewer") {
				f.ViewerID = viewer
			}
			if cmd.Flags().Changed("status") {
				st, err := order.ParseStatus(status)
				if err != nil {
					return err
				}
				f.Status = st
			}

			c.list = listOrders
			err := c.sess.SearchOrders(ctx, f)
			if errors.Is(err, order.ErrNoViewer) {
				c.promptViewer(f.Role)
				return nil
			}
			if err != nil {
				return err
			}
			if pageN > 0 {
				if err := c.sess.SeekOrders(ctx, pageN); err != nil {
					return err
				}
			}
			c.printOrders()
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(order.RoleBuyer), "buyer or seller")
	cmd.Flags().Int64Var(&viewer, "viewer", 0, "buyer or seller ID to list orders for")
	cmd.Flags().StringVar(&status, "status", "", "pending, confirmed, completed, cancelled or all")
	cmd.Flags().IntVar(&pageN, "page", 0, "jump to page N")
	return cmd
}

func (c *CLI) promptViewer(r order.Role) {
	if r == "" {
		r = order.RoleBuyer
	}
	fmt.Fprintf(c.out, "enter a %s ID to list orders: orders --role %s --viewer <id>\n", r, r)
}

func (c *CLI) nextCmd() *cobra.Command {
	return c.pageCmd("next", "Show the next page", true)
}

func (c *CLI) prevCmd() *cobra.Command {
	return c.pageCmd("prev", "Show the previous page", false)
}

func (c *CLI) pageCmd(name, short string, forward bool) *cobra.Command {
	return &cobra.Command{
		Use:       name + " [products|orders]",
		Short:     short + " of the last list, or of the named one",
		GroupID:   "browse",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{listProducts, listOrders},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			list := c.list
			if len(args) > 0 {
				list = args[0]
			}
			c.list = list

			var (
				moved bool
				err   error
			)
			switch list {
			case listOrders:
				if !c.sess.Orders().Loaded {
					if err := c.sess.RefreshOrders(ctx); err != nil {
						if errors.Is(err, order.ErrNoViewer) {
							c.promptViewer(c.sess.Orders().Filter.Role)
							return nil
						}
						return err
					}
				}
				if forward {
					moved, err = c.sess.NextOrders(ctx)
				} else {
					moved, err = c.sess.PrevOrders(ctx)
				}
			default:
				if !c.sess.Products().Loaded {
					if err := c.sess.RefreshProducts(ctx); err != nil {
						return err
					}
				}
				if forward {
					moved, err = c.sess.NextProducts(ctx)
				} else {
					moved, err = c.sess.PrevProducts(ctx)
				}
			}
			if err != nil {
				return err
			}
			if !moved {
				if forward {
					fmt.Fprintln(c.out, "already on the last page")
				} else {
					fmt.Fprintln(c.out, "already on the first page")
				}
			}

			if list == listOrders {
				c.printOrders()
			} else {
				c.printProducts()
			}
			return nil
		},
	}
}

func (c *CLI) createCmd() *cobra.Command {
	var p order.Params
	cmd := &cobra.Command{
		Use:     "create --buyer ID --product ID",
		Short:   "Order a product",
		GroupID: "orders",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.act(cmd, order.ActionCreate, p)
		},
	}
	cmd.Flags().Int64Var(&p.BuyerID, "buyer", 0, "buyer ID")
	cmd.Flags().Int64Var(&p.ProductID, "product", 0, "product ID")
	return cmd
}

func (c *CLI) confirmCmd() *cobra.Command {
	var p order.Params
	cmd := &cobra.Command{
		Use:     "confirm [--order ID] --seller ID",
		Short:   "Confirm an order as its seller",
		Long:    "Confirm an order as its seller. Without --order the last created or selected order is used.",
		GroupID: "orders",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.act(cmd, order.ActionConfirm, p)
		},
	}
	cmd.Flags().Int64Var(&p.OrderID, "order", 0, "order ID")
	cmd.Flags().Int64Var(&p.SellerID, "seller", 0, "seller ID")
	return cmd
}

func (c *CLI) finishCmd() *cobra.Command {
	return c.closeCmd(order.ActionFinish, "Mark a confirmed order completed")
}

func (c *CLI) cancelCmd() *cobra.Command {
	return c.closeCmd(order.ActionCancel, "Cancel an order")
}

func (c *CLI) closeCmd(a order.Action, short string) *cobra.Command {
	var p order.Params
	cmd := &cobra.Command{
		Use:     string(a) + " [--order ID] --by ID",
		Short:   short + " as its buyer or seller",
		Long:    short + " as its buyer or seller. Without --order the last created or selected order is used.",
		GroupID: "orders",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.act(cmd, a, p)
		},
	}
	cmd.Flags().Int64Var(&p.OrderID, "order", 0, "order ID")
	cmd.Flags().Int64Var(&p.ByUserID, "by", 0, "ID of the user acting")
	return cmd
}

func (c *CLI) selectCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "select [order-id]",
		Short:   "Choose the order confirm, finish and cancel default to",
		GroupID: "orders",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				if id := c.sess.LastOrderID(); id != 0 {
					fmt.Fprintf(c.out, "selected order: %d\n", id)
				} else {
					fmt.Fprintln(c.out, "no order selected")
				}
				return nil
			}

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return errors.Errorf("invalid order ID %q", args[0])
			}
			c.sess.SelectOrder(id)
			fmt.Fprintf(c.out, "selected order %d", id)
			if o, ok := c.sess.KnownOrder(id); ok {
				fmt.Fprintf(c.out, ": %s, actions %s", o.Status.Label(), actions(o, c.sess.Orders().Filter.ViewerID))
			}
			fmt.Fprintln(c.out)
			return nil
		},
	}
}

func (c *CLI) act(cmd *cobra.Command, a order.Action, p order.Params) error {
	out, err := c.sess.Act(cmd.Context(), a, p)
	if err != nil {
		return err
	}
	c.printOutcome(out)
	return nil
}

func (c *CLI) watchCmd() *cobra.Command {
	opts := c.opts.Watch
	var limit time.Duration
	cmd := &cobra.Command{
		Use:     "watch [url]",
		Short:   "Probe the API health periodically and report changes",
		GroupID: "setup",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := c.targetBase(cmd, args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if limit > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, limit)
				defer cancel()
			}
			return c.watch(ctx, base, opts)
		},
	}
	cmd.Flags().DurationVar(&opts.Interval, "interval", opts.Interval, "time between probes")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", opts.Timeout, "probe timeout")
	cmd.Flags().IntVar(&opts.FailureThreshold, "failures", opts.FailureThreshold, "consecutive failures before reporting unhealthy")
	cmd.Flags().IntVar(&opts.SuccessThreshold, "successes", opts.SuccessThreshold, "consecutive successes before reporting healthy")
	cmd.Flags().DurationVar(&limit, "for", 0, "stop after this long (0 runs until interrupted)")
	return cmd
}

func (c *CLI) exportCmd() *cobra.Command {
	var (
		query  string
		status string
		output string
	)
	cmd := &cobra.Command{
		Use:     "export [-o file]",
		Short:   "Write every matching product as JSON lines",
		Long:    "Write every matching product as JSON lines to stdout or a file. Files ending in .gz are gzip-compressed.",
		GroupID: "browse",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := product.ParseStatus(status)
			if err != nil {
				return err
			}
			f := product.Filter{Query: query, Status: st}
			n, err := c.export(cmd.Context(), f, output)
			if err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(c.out, "exported %d products to %s\n", n, output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "search text")
	cmd.Flags().StringVar(&status, "status", "all", "onsale, sold, delisted or all")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (c *CLI) shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.inShell {
				return errors.New("already in the shell")
			}
			return c.Shell(cmd.Context())
		},
	}
}
