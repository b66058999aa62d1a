package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/xenking/thriftmarket/internal/domain/order"
	"github.com/xenking/thriftmarket/internal/domain/page"
	"github.com/xenking/thriftmarket/internal/session"
)

const timeLayout = "2006-01-02 15:04"

func (c *CLI) table() *tabwriter.Writer {
	return tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
}

func (c *CLI) printProducts() {
	v := c.sess.Products()
	rows := c.sess.ProductRows()
	if len(rows) == 0 {
		fmt.Fprintln(c.out, "no products")
		c.printSummary(v.Cursor)
		return
	}

	tw := c.table()
	fmt.Fprintln(tw, "ID\tTITLE\tPRICE\tSTATUS\tSELLER")
	speculative := false
	for _, p := range rows {
		status := p.Status.Label()
		if p.Speculative {
			status += "*"
			speculative = true
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", p.ID, clip(p.Title, 40), p.Price.StringFixed(2), status, p.SellerID)
	}
	_ = tw.Flush()

	c.printSummary(v.Cursor)
	if speculative {
		fmt.Fprintln(c.out, "* ordered in this session; refresh to see the server state")
	}
}

func (c *CLI) printOrders() {
	v := c.sess.Orders()
	if len(v.Items) == 0 {
		fmt.Fprintln(c.out, "no orders")
		c.printSummary(v.Cursor)
		return
	}

	tw := c.table()
	fmt.Fprintln(tw, "ID\tPRODUCT\tBUYER\tSELLER\tSTATUS\tUPDATED\tACTIONS")
	for _, o := range v.Items {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%s\t%s\t%s\n",
			o.ID, o.ProductID, o.BuyerID, o.SellerID,
			o.Status.Label(), formatTime(o.UpdatedAt), actions(o, v.Filter.ViewerID),
		)
	}
	_ = tw.Flush()
	c.printSummary(v.Cursor)
}

func (c *CLI) printSummary(cur page.Cursor) {
	if cur.Total == 0 {
		return
	}
	var more []string
	if cur.HasPrev() {
		more = append(more, "prev")
	}
	if cur.HasNext() {
		more = append(more, "next")
	}
	fmt.Fprintf(c.out, "%s (page %d/%d)", cur, cur.Page(), cur.Pages())
	if len(more) > 0 {
		fmt.Fprintf(c.out, " [%s]", strings.Join(more, " "))
	}
	fmt.Fprintln(c.out)
}

func (c *CLI) printOutcome(out session.Outcome) {
	if out.Hint != "" {
		fmt.Fprintf(c.out, "note: %s; sending anyway\n", out.Hint)
	}
	if out.Rejected() {
		fmt.Fprintf(c.out, "%s rejected: %v\n", out.Action, out.Rejection)
		return
	}
	fmt.Fprintf(c.out, "order %d %s: %s\n", out.Order.ID, actionDone(out.Action), out.Order.Status.Label())
	if out.RefreshErr != nil {
		fmt.Fprintf(c.out, "warning: could not refresh orders: %v\n", out.RefreshErr)
		return
	}
	if c.sess.Orders().Loaded {
		c.printOrders()
	}
}

func actionDone(a order.Action) string {
	switch a {
	case order.ActionCreate:
		return "created"
	case order.ActionConfirm:
		return "confirmed"
	case order.ActionFinish:
		return "finished"
	case order.ActionCancel:
		return "cancelled"
	default:
		return string(a)
	}
}

// actions lists what the viewer can probably do next with o.
func actions(o order.Order, viewer int64) string {
	allowed := order.Allowed(o, viewer)
	if len(allowed) == 0 {
		return "-"
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return strings.Join(names, ",")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
