// Package page implements the limit/offset cursor shared by every list view.
//
// A Cursor is a value: navigation methods return a new Cursor and never mutate
// the receiver. Offset is kept a non-negative multiple of Limit.
package page

import "fmt"

// DefaultLimit is the page size used when none is configured.
const DefaultLimit = 12

// Cursor describes one page of a list view.
type Cursor struct {
	Limit  int
	Offset int
	Total  int
}

// New returns a cursor at the first page. Non-positive limits fall back to
// DefaultLimit.
func New(limit int) Cursor {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return Cursor{Limit: limit}
}

// normalize repairs a cursor built by hand so that the invariants hold.
func (c Cursor) normalize() Cursor {
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	if c.Offset < 0 {
		c.Offset = 0
	}
	c.Offset -= c.Offset % c.Limit
	if c.Total < 0 {
		c.Total = 0
	}
	return c
}

// HasNext reports whether a page exists after the current one.
func (c Cursor) HasNext() bool {
	c = c.normalize()
	return c.Offset+c.Limit < c.Total
}

// HasPrev reports whether a page exists before the current one.
func (c Cursor) HasPrev() bool {
	return c.normalize().Offset > 0
}

// Next advances one page. It reports false and returns the cursor unchanged
// once offset+limit reaches total.
func (c Cursor) Next() (Cursor, bool) {
	c = c.normalize()
	if c.Offset+c.Limit >= c.Total {
		return c, false
	}
	c.Offset += c.Limit
	return c, true
}

// Prev goes back one page, clamping at zero. It reports false when already on
// the first page.
func (c Cursor) Prev() (Cursor, bool) {
	c = c.normalize()
	if c.Offset == 0 {
		return c, false
	}
	c.Offset = max(0, c.Offset-c.Limit)
	return c, true
}

// Reset returns to the first page, keeping limit and total.
func (c Cursor) Reset() Cursor {
	c = c.normalize()
	c.Offset = 0
	return c
}

// Seek moves to the 1-based page n. Pages past the known total are clamped to
// the last page; n < 1 selects the first page.
func (c Cursor) Seek(n int) Cursor {
	c = c.normalize()
	if n < 1 {
		n = 1
	}
	c.Offset = (n - 1) * c.Limit
	if c.Total > 0 && c.Offset >= c.Total {
		c.Offset = c.lastOffset()
	}
	return c
}

// WithTotal records the total reported by the server.
func (c Cursor) WithTotal(total int) Cursor {
	c.Total = total
	return c.normalize()
}

// Overflows reports whether the offset points past the end of the result
// set, which happens when the total shrinks between two fetches. The first
// page never overflows, even when the list is empty.
func (c Cursor) Overflows() bool {
	c = c.normalize()
	return c.Offset > 0 && c.Offset >= c.Total
}

// Clamp moves an overflowing cursor to the last page, or to the first when
// the list is empty.
func (c Cursor) Clamp() Cursor {
	c = c.normalize()
	if c.Overflows() {
		c.Offset = c.lastOffset()
	}
	return c
}

func (c Cursor) lastOffset() int {
	if c.Total == 0 {
		return 0
	}
	return (c.Total - 1) / c.Limit * c.Limit
}

// Page returns the 1-based number of the current page.
func (c Cursor) Page() int {
	c = c.normalize()
	return c.Offset/c.Limit + 1
}

// Pages returns the number of pages implied by total.
func (c Cursor) Pages() int {
	c = c.normalize()
	return (c.Total + c.Limit - 1) / c.Limit
}

// Range returns the 1-based positions of the first and last item on the page.
// Both are zero when the list is empty.
func (c Cursor) Range() (start, end int) {
	c = c.normalize()
	if c.Total == 0 || c.Offset >= c.Total {
		return 0, 0
	}
	return c.Offset + 1, min(c.Offset+c.Limit, c.Total)
}

func (c Cursor) String() string {
	start, end := c.Range()
	if start == 0 {
		return "no results"
	}
	return fmt.Sprintf("showing %d-%d of %d", start, end, c.Total)
}
