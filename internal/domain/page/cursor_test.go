package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultLimit(t *testing.T) {
	assert.Equal(t, Cursor{Limit: DefaultLimit}, New(0))
	assert.Equal(t, Cursor{Limit: 5}, New(5))
}

func TestCursor_NextScenario(t *testing.T) {
	c := Cursor{Limit: 12, Offset: 0, Total: 30}

	c, ok := c.Next()
	require.True(t, ok)
	assert.Equal(t, 12, c.Offset)

	c, ok = c.Next()
	require.True(t, ok)
	assert.Equal(t, 24, c.Offset)

	c, ok = c.Next()
	assert.False(t, ok)
	assert.Equal(t, 24, c.Offset)
}

func TestCursor_PrevClampsAtZero(t *testing.T) {
	c := Cursor{Limit: 12, Offset: 12, Total: 30}

	c, ok := c.Prev()
	require.True(t, ok)
	assert.Equal(t, 0, c.Offset)

	c, ok = c.Prev()
	assert.False(t, ok)
	assert.Equal(t, 0, c.Offset)
}

func TestCursor_Bounds(t *testing.T) {
	// Exhaustive over small values: prev never goes negative, next never
	// passes total, offset stays a multiple of limit.
	for limit := 1; limit <= 7; limit++ {
		for total := 0; total <= 30; total++ {
			for offset := 0; offset <= 35; offset += limit {
				c := Cursor{Limit: limit, Offset: offset, Total: total}

				p, _ := c.Prev()
				assert.GreaterOrEqual(t, p.Offset, 0)
				assert.Zero(t, p.Offset%limit)

				n, moved := c.Next()
				if moved {
					assert.Less(t, n.Offset, total)
				} else {
					assert.Equal(t, c.Offset, n.Offset)
				}
				assert.Zero(t, n.Offset%limit)
			}
		}
	}
}

func TestCursor_NormalizesHandBuiltValues(t *testing.T) {
	c := Cursor{Limit: 10, Offset: 17, Total: -3}

	n := c.Reset()
	assert.Equal(t, Cursor{Limit: 10}, n)

	p, ok := Cursor{Limit: 10, Offset: 17, Total: 40}.Prev()
	require.True(t, ok)
	assert.Equal(t, 0, p.Offset)

	assert.Equal(t, DefaultLimit, Cursor{Offset: -4}.Reset().Limit)
}

func TestCursor_Seek(t *testing.T) {
	c := Cursor{Limit: 12, Total: 30}

	assert.Equal(t, 12, c.Seek(2).Offset)
	assert.Equal(t, 24, c.Seek(9).Offset)
	assert.Equal(t, 0, c.Seek(0).Offset)
	assert.Equal(t, 3, c.Seek(3).Page())
}

func TestCursor_ClampAfterShrink(t *testing.T) {
	c := Cursor{Limit: 12, Offset: 24}.WithTotal(13)

	require.True(t, c.Overflows())
	c = c.Clamp()
	assert.Equal(t, 12, c.Offset)
	assert.False(t, c.Overflows())

	empty := Cursor{Limit: 12, Offset: 24}.WithTotal(0)
	require.True(t, empty.Overflows())
	empty = empty.Clamp()
	assert.Equal(t, 0, empty.Offset)
	assert.False(t, empty.HasPrev())
	assert.False(t, empty.Overflows())

	assert.False(t, Cursor{Limit: 12}.WithTotal(0).Overflows())
}

func TestCursor_Range(t *testing.T) {
	tests := []struct {
		name  string
		c     Cursor
		start int
		end   int
		text  string
	}{
		{"empty", Cursor{Limit: 12}, 0, 0, "no results"},
		{"first page", Cursor{Limit: 12, Total: 30}, 1, 12, "showing 1-12 of 30"},
		{"last partial page", Cursor{Limit: 12, Offset: 24, Total: 30}, 25, 30, "showing 25-30 of 30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.c.Range()
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
			assert.Equal(t, tt.text, tt.c.String())
		})
	}
}

func TestCursor_Pages(t *testing.T) {
	assert.Equal(t, 0, Cursor{Limit: 12}.Pages())
	assert.Equal(t, 3, Cursor{Limit: 12, Total: 30}.Pages())
	assert.Equal(t, 1, Cursor{Limit: 12, Total: 12}.Pages())
}
