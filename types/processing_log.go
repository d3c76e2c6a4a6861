package types

import "time"

// ChunkTiming is one chunk's entry in the processing log.
type ChunkTiming struct {
	ChunkID          int         `json:"chunk_id"`
	RowStart         int         `json:"row_start"`
	RowEnd           int         `json:"row_end"`
	Status           ChunkStatus `json:"status"`
	ProcessingTimeMs int64       `json:"processing_time_ms"`
	Error            string      `json:"error,omitempty"`
}

// FailedRow identifies an input row whose chunk failed.
type FailedRow struct {
	RowIndex int    `json:"row_index"`
	ChunkID  int    `json:"chunk_id"`
	Error    string `json:"error"`
}

// ProcessingLog is persisted next to every output file.
type ProcessingLog struct {
	SessionId        string        `json:"session_id"`
	ProcessingType   string        `json:"processing_type"`
	Model            string        `json:"model"`
	SourceFile       string        `json:"source_file,omitempty"`
	TotalRows        int           `json:"total_rows"`
	ChunkSize        int           `json:"chunk_size"`
	NumberOfChunks   int           `json:"number_of_chunks"`
	SuccessfulChunks int           `json:"successful_chunks"`
	FailedChunks     int           `json:"failed_chunks"`
	CancelledChunks  int           `json:"cancelled_chunks"`
	ChunkTimings     []ChunkTiming `json:"chunk_timings"`
	FailedRowDetails []FailedRow   `json:"failed_row_details"`
	CancelledRows    []int         `json:"cancelled_rows"`
	AddedColumns     []string      `json:"added_columns"`
	StartedAt        time.Time     `json:"started_at"`
	FinishedAt       time.Time     `json:"finished_at"`
	TotalTimeMs      int64         `json:"total_time_ms"`
}
