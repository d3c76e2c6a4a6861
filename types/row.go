package types

import "time"

// Row is one spreadsheet row keyed by canonical column name. Values are scalars:
// string, number, or "" for empty cells. A row has no ID; its position is its identity.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Chunk is a contiguous run of rows processed as one LLM request.
// Rows cover the global index range [Start, End).
type Chunk struct {
	ID    int   `json:"chunkId"`
	Start int   `json:"start"`
	End   int   `json:"end"`
	Rows  []Row `json:"-"`
}

// Len returns the number of rows in the chunk.
func (c Chunk) Len() int {
	return c.End - c.Start
}

type ChunkStatus string

const (
	ChunkOK        ChunkStatus = "ok"
	ChunkFailed    ChunkStatus = "failed"
	ChunkCancelled ChunkStatus = "cancelled"
)

// ChunkResult is produced once per chunk and never mutated afterwards.
type ChunkResult struct {
	ChunkID  int
	Status   ChunkStatus
	Rows     []Row // processed rows, only meaningful when Status is ChunkOK
	Duration time.Duration
	Err      string
}

type RowOutcome string

const (
	RowProcessed RowOutcome = "processed"
	RowFailed    RowOutcome = "failed"
	RowCancelled RowOutcome = "cancelled"
)

// ErrorColumn is the output column carrying the failure message of a failed row.
const ErrorColumn = "error"

// MergedRow is one output row after reassembly. Values always holds the full merged
// column set; missing fields are nil. Err is set only when Outcome is RowFailed.
type MergedRow struct {
	Index   int
	Outcome RowOutcome
	Values  Row
	Err     string
}

// Flatten returns the row as written to the output file, with the error column filled
// for failed rows.
func (m MergedRow) Flatten(columns []string) Row {
	out := make(Row, len(columns))
	for _, col := range columns {
		out[col] = m.Values[col]
	}
	if m.Outcome == RowFailed {
		out[ErrorColumn] = m.Err
	}
	return out
}
