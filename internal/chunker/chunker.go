package chunker

import (
	"log/slog"

	"github.com/chronicle-lab/tsreport/internal/config"
	"github.com/chronicle-lab/tsreport/internal/dataset"
	"github.com/chronicle-lab/tsreport/internal/models"
)

// Per-row byte estimates by column type. Text uses an average because the
// planner never scans cell contents.
const (
	bytesNumeric  = 8
	bytesTemporal = 8
	bytesText     = 50
	bytesBool     = 1

	// Above this row count a usable time axis switches the planner to
	// time-aligned chunk boundaries.
	timeAlignedMinRows = 100000
)

// Strategy names reported in plans.
const (
	StrategySingle      = "single_chunk"
	StrategyRowRange    = "row_range"
	StrategyTimeAligned = "time_aligned"
)

// Plan is the outcome of chunk planning: the dataset the descriptors index
// into (sorted by time when the strategy is time-aligned) plus the
// descriptors themselves.
type Plan struct {
	Dataset     *dataset.Dataset
	Chunks      []models.ChunkDescriptor
	Strategy    string
	BytesPerRow int64
}

// TotalRows is the row count covered by the plan.
func (p *Plan) TotalRows() int {
	return p.Dataset.Rows()
}

// Planner slices datasets into memory-bounded row ranges.
type Planner struct {
	cfg    config.ChunkingConfig
	logger *slog.Logger
}

func NewPlanner(cfg config.ChunkingConfig, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{cfg: cfg, logger: logger}
}

// BytesPerRow estimates the in-memory footprint of one row from the
// dataset's column types.
func BytesPerRow(ds *dataset.Dataset) int64 {
	var total int64
	for _, name := range ds.ColumnNames() {
		col, _ := ds.Column(name)
		switch col.Type {
		case dataset.Numeric:
			total += bytesNumeric
		case dataset.Temporal:
			total += bytesTemporal
		case dataset.Bool:
			total += bytesBool
		default:
			total += bytesText
		}
	}
	if total == 0 {
		total = 1
	}
	return total
}

// Plan builds chunk descriptors for ds. When timeColumn names a temporal
// column and the dataset is large, rows are first sorted by time and then
// partitioned by row position, not by calendar boundaries, so irregular
// sampling density cannot skew chunk sizes. The returned Plan carries the
// sorted dataset and every descriptor records its observed time range.
func (p *Planner) Plan(ds *dataset.Dataset, timeColumn string) (*Plan, error) {
	rows := ds.Rows()
	perRow := BytesPerRow(ds)
	budget := int64(p.cfg.MemoryBudgetMB * 1024 * 1024)
	total := perRow * int64(rows)

	if total <= budget || rows == 0 {
		plan := &Plan{
			Dataset:     ds,
			Strategy:    StrategySingle,
			BytesPerRow: perRow,
			Chunks: []models.ChunkDescriptor{{
				ChunkID:             0,
				StartRow:            0,
				EndRow:              rows,
				RowCount:            rows,
				MemoryEstimateBytes: total,
			}},
		}
		return plan, nil
	}

	chunkRows := p.optimalChunkRows(perRow, budget)

	var chunks []models.ChunkDescriptor
	strategy := StrategyRowRange
	if timeColumn != "" && rows > timeAlignedMinRows {
		if col, ok := ds.Column(timeColumn); ok && col.Type == dataset.Temporal {
			sorted, err := ds.SortByTime(timeColumn)
			if err != nil {
				return nil, err
			}
			ds = sorted
			chunks = p.rowChunks(ds, chunkRows, perRow, true, timeColumn)
			strategy = StrategyTimeAligned
		}
	}
	if chunks == nil {
		chunks = p.rowChunks(ds, chunkRows, perRow, false, timeColumn)
	}
	p.logger.Debug("chunk plan built",
		slog.Int("rows", rows),
		slog.Int("chunks", len(chunks)),
		slog.String("strategy", strategy),
		slog.Int64("bytes_per_row", perRow))

	return &Plan{Dataset: ds, Chunks: chunks, Strategy: strategy, BytesPerRow: perRow}, nil
}

// optimalChunkRows fits the per-chunk row count to the memory budget,
// clamped to the configured bounds.
func (p *Planner) optimalChunkRows(perRow, budget int64) int {
	rows := int(budget / perRow)
	if rows < p.cfg.MinChunkRows {
		rows = p.cfg.MinChunkRows
	}
	if rows > p.cfg.MaxChunkRows {
		rows = p.cfg.MaxChunkRows
	}
	if rows < 1 {
		rows = 1
	}
	return rows
}

// rowChunks partitions [0, rows) into fixed row-position ranges. When
// timeAligned is set the dataset is already time-sorted and each descriptor
// records the observed timestamp range of its rows.
func (p *Planner) rowChunks(ds *dataset.Dataset, chunkRows int, perRow int64, timeAligned bool, timeColumn string) []models.ChunkDescriptor {
	rows := ds.Rows()
	var chunks []models.ChunkDescriptor
	for start := 0; start < rows; start += chunkRows {
		end := start + chunkRows
		if end > rows {
			end = rows
		}
		desc := models.ChunkDescriptor{
			ChunkID:             len(chunks),
			StartRow:            start,
			EndRow:              end,
			RowCount:            end - start,
			MemoryEstimateBytes: perRow * int64(end-start),
		}
		if timeAligned {
			if col, ok := ds.Slice(start, end).Column(timeColumn); ok {
				if min, max, ok := col.TimeBounds(); ok {
					desc.TimeRange = &models.TimeRange{Start: min, End: max}
				}
			}
		}
		chunks = append(chunks, desc)
	}
	return chunks
}

// Chunk materialises the rows a descriptor covers. With overlap enabled the
// range is widened on both sides by the configured ratio of the chunk's own
// row count, clamped to the dataset; overlap affects only what is read, the
// descriptor bounds are untouched.
func (p *Planner) Chunk(ds *dataset.Dataset, desc models.ChunkDescriptor, withOverlap bool) *dataset.Dataset {
	start, end := desc.StartRow, desc.EndRow
	if withOverlap && p.cfg.OverlapRatio > 0 {
		pad := int(float64(desc.RowCount) * p.cfg.OverlapRatio)
		start -= pad
		end += pad
	}
	return ds.Slice(start, end)
}
