package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geekydillip/Market-Pulse-AI-sub000/types"
)

func makeRows(n int) []types.Row {
	rows := make([]types.Row, n)
	for i := range rows {
		rows[i] = types.Row{"Title": fmt.Sprintf("r%d", i)}
	}
	return rows
}

func TestBuild(t *testing.T) {
	cases := []struct {
		name   string
		n, k   int
		chunks int
		last   int
	}{
		{name: "uneven", n: 5, k: 2, chunks: 3, last: 1},
		{name: "exact", n: 6, k: 3, chunks: 2, last: 3},
		{name: "single chunk", n: 3, k: 10, chunks: 1, last: 3},
		{name: "k zero coerced", n: 4, k: 0, chunks: 4, last: 1},
		{name: "k negative coerced", n: 2, k: -5, chunks: 2, last: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows := makeRows(tc.n)
			chunks := Build(rows, tc.k)
			require.Len(t, chunks, tc.chunks)
			assert.Equal(t, tc.last, chunks[len(chunks)-1].Len())

			next := 0
			for i, c := range chunks {
				assert.Equal(t, i, c.ID)
				assert.Equal(t, next, c.Start)
				assert.NotZero(t, c.Len())
				for j, r := range c.Rows {
					assert.Equal(t, rows[c.Start+j], r)
				}
				next = c.End
			}
			assert.Equal(t, tc.n, next)
		})
	}
}

func TestBuildEmpty(t *testing.T) {
	assert.Empty(t, Build(nil, 3))
	assert.Empty(t, Build([]types.Row{}, 0))
}

func TestBuildChunkRowsDoNotAlias(t *testing.T) {
	rows := makeRows(4)
	chunks := Build(rows, 2)
	extended := append(chunks[0].Rows, types.Row{"Title": "extra"})
	assert.Len(t, extended, 3)
	assert.Equal(t, "r2", rows[2]["Title"])
}
