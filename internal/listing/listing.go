// Package listing keeps paginated list views in sync with the server.
//
// A View is a plain value holding filter, cursor and items. Refresh and the
// navigation methods take a view and return a new one, so views can be kept
// per screen and tested without a server.
package listing

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/thriftmarket/internal/api"
	"github.com/xenking/thriftmarket/internal/domain/page"
)

// FetchFunc loads one page for a filter.
type FetchFunc[F comparable, T any] func(ctx context.Context, filter F, cur page.Cursor) (api.List[T], error)

// View is the state of one list screen.
type View[F comparable, T any] struct {
	Filter F
	Cursor page.Cursor
	Items  []T
	// Loaded is false until the first successful refresh.
	Loaded bool
}

// NewView returns an empty view at the first page.
func NewView[F comparable, T any](filter F, limit int) View[F, T] {
	return View[F, T]{Filter: filter, Cursor: page.New(limit)}
}

// WithFilter applies a filter. Any change resets the view to the first page.
func (v View[F, T]) WithFilter(f F) View[F, T] {
	if f != v.Filter {
		v.Cursor = v.Cursor.Reset()
	}
	v.Filter = f
	return v
}

// Reset returns to the first page with the same filter.
func (v View[F, T]) Reset() View[F, T] {
	v.Cursor = v.Cursor.Reset()
	return v
}

// NextPage moves forward one page. It reports false, leaving the view
// unchanged, when already on the last page.
func (v View[F, T]) NextPage() (View[F, T], bool) {
	cur, ok := v.Cursor.Next()
	v.Cursor = cur
	return v, ok
}

// PrevPage moves back one page, clamping at the first.
func (v View[F, T]) PrevPage() (View[F, T], bool) {
	cur, ok := v.Cursor.Prev()
	v.Cursor = cur
	return v, ok
}

// SeekPage moves to the 1-based page n.
func (v View[F, T]) SeekPage(n int) View[F, T] {
	v.Cursor = v.Cursor.Seek(n)
	return v
}

// Refresh fetches the page the view points at and replaces its items and
// total. On error the input view is returned unchanged.
//
// When the server reports fewer items than the current offset (the list
// shrank since the last fetch), the cursor is clamped to the last page and
// fetched once more. A list that became empty goes back to the first page.
func Refresh[F comparable, T any](ctx context.Context, fetch FetchFunc[F, T], v View[F, T]) (View[F, T], error) {
	list, err := fetch(ctx, v.Filter, v.Cursor)
	if err != nil {
		return v, err
	}

	cur := v.Cursor.WithTotal(list.Total)
	if cur.Overflows() {
		cur = cur.Clamp()
		if cur.Total > 0 {
			list, err = fetch(ctx, v.Filter, cur)
			if err != nil {
				return v, errors.Wrap(err, "refetch last page")
			}
			cur = cur.WithTotal(list.Total).Clamp()
		}
	}

	v.Cursor = cur
	v.Items = list.Items
	v.Loaded = true
	return v, nil
}

// Walk fetches every page for filter from the first, calling fn for each
// page's items in order. It stops early when fn returns an error.
func Walk[F comparable, T any](ctx context.Context, fetch FetchFunc[F, T], filter F, limit int, fn func([]T) error) error {
	v := NewView[F, T](filter, limit)
	for {
		list, err := fetch(ctx, v.Filter, v.Cursor)
		if err != nil {
			return errors.Wrapf(err, "fetch page %d", v.Cursor.Page())
		}
		if err := fn(list.Items); err != nil {
			return err
		}

		v.Cursor = v.Cursor.WithTotal(list.Total)
		next, ok := v.NextPage()
		if !ok || len(list.Items) == 0 {
			return nil
		}
		v = next
	}
}
