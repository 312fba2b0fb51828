package models

import "time"

// TimeRange is the observed [Start, End] timestamp bounds of a chunk.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ChunkDescriptor identifies one contiguous row-range slice of a dataset.
// Descriptors of one plan are zero-indexed, non-overlapping and cover the
// full row range exactly once; overlap is a read-time view, never stored.
type ChunkDescriptor struct {
	ChunkID             int        `json:"chunk_id"`
	StartRow            int        `json:"start_row"`
	EndRow              int        `json:"end_row"` // exclusive
	RowCount            int        `json:"row_count"`
	MemoryEstimateBytes int64      `json:"memory_estimate_bytes"`
	TimeRange           *TimeRange `json:"time_range,omitempty"`
}
