// Package pipeline turns normalized rows into chunked LLM calls and reassembles the
// per-chunk results into one output row set.
package pipeline

import "github.com/geekydillip/Market-Pulse-AI-sub000/types"

// Build splits rows into ceil(n/k) contiguous chunks numbered from 0. Every row lands
// in exactly one chunk and order is preserved. k < 1 is treated as 1; empty input
// yields no chunks.
func Build(rows []types.Row, k int) []types.Chunk {
	if k < 1 {
		k = 1
	}
	if len(rows) == 0 {
		return nil
	}
	chunks := make([]types.Chunk, 0, (len(rows)+k-1)/k)
	for start := 0; start < len(rows); start += k {
		end := min(start+k, len(rows))
		chunks = append(chunks, types.Chunk{
			ID:    len(chunks),
			Start: start,
			End:   end,
			Rows:  rows[start:end:end],
		})
	}
	return chunks
}
