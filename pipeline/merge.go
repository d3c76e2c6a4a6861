package pipeline

import (
	"fmt"
	"sort"

	"github.com/geekydillip/Market-Pulse-AI-sub000/types"
)

const (
	errMissingChunk = "no result for chunk"
	errMissingRow   = "row missing from model response"
)

// Merged is the reassembled output of one processing run.
type Merged struct {
	Rows []types.MergedRow
	// Columns is the column order of the output file, error column included when any
	// row failed.
	Columns []string
	// Added lists the columns that came from the model, in first-seen order.
	Added []string
}

// Merge reassembles chunk results into exactly len(input) rows in input order. Row
// chunkID*chunkSize+i of the output is row i of that chunk. Rows of failed chunks,
// rows a chunk's response left out, and rows of chunks with no result become the
// original input row with outcome failed; rows of cancelled chunks become the
// original row with outcome cancelled.
//
// Processed rows are the input row overlaid with the model's fields, so schema columns
// the model omitted keep their input values. Every output row carries every column;
// fields a row lacks are nil.
func Merge(input []types.Row, schemaColumns []string, results []types.ChunkResult, chunkSize int) Merged {
	if chunkSize < 1 {
		chunkSize = 1
	}
	out := make([]types.MergedRow, len(input))
	filled := make([]bool, len(input))

	for _, res := range results {
		base := res.ChunkID * chunkSize
		if res.ChunkID < 0 || base >= len(input) {
			continue
		}
		end := min(base+chunkSize, len(input))
		for i := base; i < end; i++ {
			local := i - base
			row := types.MergedRow{Index: i, Values: input[i].Clone()}
			switch res.Status {
			case types.ChunkOK:
				if local < len(res.Rows) {
					row.Outcome = types.RowProcessed
					for k, v := range res.Rows[local] {
						row.Values[k] = v
					}
					delete(row.Values, types.ErrorColumn)
				} else {
					row.Outcome = types.RowFailed
					row.Err = errMissingRow
				}
			case types.ChunkCancelled:
				row.Outcome = types.RowCancelled
			default:
				row.Outcome = types.RowFailed
				row.Err = res.Err
				if row.Err == "" {
					row.Err = fmt.Sprintf("chunk %d failed", res.ChunkID)
				}
			}
			out[i] = row
			filled[i] = true
		}
	}
	for i := range out {
		if !filled[i] {
			out[i] = types.MergedRow{
				Index:   i,
				Outcome: types.RowFailed,
				Values:  input[i].Clone(),
				Err:     errMissingChunk,
			}
		}
	}

	columns, added := mergedColumns(out, schemaColumns)
	hasFailed := false
	for i := range out {
		for _, col := range columns {
			if _, ok := out[i].Values[col]; !ok {
				out[i].Values[col] = nil
			}
		}
		if out[i].Outcome == types.RowFailed {
			hasFailed = true
		}
	}
	if hasFailed {
		columns = append(columns, types.ErrorColumn)
	}
	return Merged{Rows: out, Columns: columns, Added: added}
}

// mergedColumns returns the schema columns followed by every other key in first-seen
// row order; keys first seen in the same row are sorted. The error column is reserved.
func mergedColumns(rows []types.MergedRow, schemaColumns []string) (columns, added []string) {
	seen := map[string]bool{types.ErrorColumn: true}
	columns = make([]string, 0, len(schemaColumns))
	for _, col := range schemaColumns {
		if !seen[col] {
			seen[col] = true
			columns = append(columns, col)
		}
	}
	for _, row := range rows {
		var fresh []string
		for k := range row.Values {
			if !seen[k] {
				fresh = append(fresh, k)
			}
		}
		sort.Strings(fresh)
		for _, k := range fresh {
			seen[k] = true
			added = append(added, k)
		}
	}
	columns = append(columns, added...)
	return columns, added
}
