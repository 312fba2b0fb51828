// Package loader ingests CSV and Parquet files into the columnar Dataset
// used by the analysis pipeline.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/chronicle-lab/tsreport/internal/dataset"
	"github.com/chronicle-lab/tsreport/internal/utils"
)

// timeNamePattern matches column names that conventionally carry timestamps.
var timeNamePattern = regexp.MustCompile(`(?i)(datetime|timestamp|tagtime|date|time)`)

// Loader reads tabular files into Datasets.
type Loader struct {
	logger *slog.Logger
}

// New constructs a Loader.
func New(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load reads a CSV or Parquet file. Text columns whose names look temporal
// are coerced to temporal via the fixed layout list; coercion failures are
// returned as warnings, never errors.
func (l *Loader) Load(ctx context.Context, path string) (*dataset.Dataset, []string, error) {
	const op = "loader.Load"

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, utils.NewAppError(op, utils.CodeFileNotFound,
				fmt.Sprintf("file %s does not exist", path), err)
		}
		return nil, nil, utils.NewAppError(op, utils.CodeInternal, "stat file", err)
	}
	if info.IsDir() {
		return nil, nil, utils.NewAppError(op, utils.CodeUnsupportedFormat,
			fmt.Sprintf("%s is a directory", path), nil)
	}

	var appenders []*columnAppender
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		appenders, err = l.readCSV(path)
	case ".parquet":
		appenders, err = l.readParquet(ctx, path)
	default:
		return nil, nil, utils.NewAppError(op, utils.CodeUnsupportedFormat,
			fmt.Sprintf("unsupported file extension %q", filepath.Ext(path)), nil)
	}
	if err != nil {
		return nil, nil, err
	}

	builder := dataset.NewBuilder()
	for _, app := range appenders {
		app.appendTo(builder)
		if app.kind == kindText && timeNamePattern.MatchString(app.name) {
			builder.CoerceTemporal(app.name)
		}
	}

	ds, warnings, err := builder.Build()
	if err != nil {
		return nil, nil, utils.NewAppError(op, utils.CodeInternal, "assemble dataset", err)
	}

	l.logger.Info("file loaded",
		slog.String("path", path),
		slog.Int("rows", ds.Rows()),
		slog.Int("columns", len(ds.ColumnNames())))
	return ds, warnings, nil
}

// DetectTimeColumn picks the time axis: the hint when usable, else the first
// temporal column whose name matches the conventional patterns, else the
// first temporal column. Returns "" when no usable time column exists.
func DetectTimeColumn(ds *dataset.Dataset, hint string) string {
	if hint != "" {
		if col, ok := ds.Column(hint); ok && col.Type == dataset.Temporal {
			return hint
		}
	}
	first := ""
	for _, name := range ds.ColumnNames() {
		col, _ := ds.Column(name)
		if col.Type != dataset.Temporal {
			continue
		}
		if timeNamePattern.MatchString(name) {
			return name
		}
		if first == "" {
			first = name
		}
	}
	return first
}

func (l *Loader) readCSV(path string) ([]*columnAppender, error) {
	const op = "loader.readCSV"

	f, err := os.Open(path)
	if err != nil {
		return nil, utils.NewAppError(op, utils.CodeInternal, "open file", err)
	}
	defer f.Close()

	rdr := csv.NewInferringReader(f,
		csv.WithChunk(8192),
		csv.WithHeader(true),
		csv.WithNullReader(true, "", "null", "NULL", "NaN", "n/a", "N/A"),
	)
	defer rdr.Release()

	var appenders []*columnAppender
	for rdr.Next() {
		rec := rdr.Record()
		if appenders == nil {
			appenders = newAppenders(rec.Schema())
		}
		for i := 0; i < int(rec.NumCols()); i++ {
			appenders[i].appendArray(rec.Column(i))
		}
	}
	if err := rdr.Err(); err != nil {
		return nil, utils.NewAppError(op, utils.CodeUnsupportedFormat, "parse csv", err)
	}
	if appenders == nil {
		// Header-only or fully empty file still yields a schema-less table.
		return nil, nil
	}
	return appenders, nil
}

func (l *Loader) readParquet(ctx context.Context, path string) ([]*columnAppender, error) {
	const op = "loader.readParquet"

	pf, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, utils.NewAppError(op, utils.CodeUnsupportedFormat, "open parquet", err)
	}
	defer pf.Close()

	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: 64 * 1024}, memory.DefaultAllocator)
	if err != nil {
		return nil, utils.NewAppError(op, utils.CodeUnsupportedFormat, "read parquet schema", err)
	}

	table, err := reader.ReadTable(ctx)
	if err != nil {
		return nil, utils.NewAppError(op, utils.CodeUnsupportedFormat, "read parquet table", err)
	}
	defer table.Release()

	appenders := newAppenders(table.Schema())
	for i := 0; i < int(table.NumCols()); i++ {
		for _, chunk := range table.Column(i).Data().Chunks() {
			appenders[i].appendArray(chunk)
		}
	}
	return appenders, nil
}

type appenderKind int

const (
	kindNumeric appenderKind = iota
	kindTemporal
	kindText
	kindBool
)

// columnAppender accumulates one column's values across record batches.
type columnAppender struct {
	name    string
	kind    appenderKind
	floats  []float64
	times   []time.Time
	strings []string
	bools   []bool
	valid   []bool
}

func newAppenders(schema *arrow.Schema) []*columnAppender {
	out := make([]*columnAppender, len(schema.Fields()))
	for i, field := range schema.Fields() {
		out[i] = &columnAppender{name: field.Name, kind: kindFor(field.Type)}
	}
	return out
}

func kindFor(dt arrow.DataType) appenderKind {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT32, arrow.FLOAT64:
		return kindNumeric
	case arrow.TIMESTAMP, arrow.DATE32, arrow.DATE64:
		return kindTemporal
	case arrow.BOOL:
		return kindBool
	default:
		return kindText
	}
}

func (a *columnAppender) appendArray(arr arrow.Array) {
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			a.appendNull()
			continue
		}
		switch a.kind {
		case kindNumeric:
			a.floats = append(a.floats, numericValue(arr, i))
			a.valid = append(a.valid, true)
		case kindTemporal:
			a.times = append(a.times, temporalValue(arr, i))
			a.valid = append(a.valid, true)
		case kindBool:
			b, _ := arr.(*array.Boolean)
			a.bools = append(a.bools, b.Value(i))
			a.valid = append(a.valid, true)
		default:
			a.strings = append(a.strings, arr.ValueStr(i))
			a.valid = append(a.valid, true)
		}
	}
}

func (a *columnAppender) appendNull() {
	switch a.kind {
	case kindNumeric:
		a.floats = append(a.floats, 0)
	case kindTemporal:
		a.times = append(a.times, time.Time{})
	case kindBool:
		a.bools = append(a.bools, false)
	default:
		a.strings = append(a.strings, "")
	}
	a.valid = append(a.valid, false)
}

func (a *columnAppender) appendTo(b *dataset.Builder) {
	switch a.kind {
	case kindNumeric:
		b.AddNumeric(a.name, a.floats, a.valid)
	case kindTemporal:
		b.AddTemporal(a.name, a.times, a.valid)
	case kindBool:
		b.AddBool(a.name, a.bools, a.valid)
	default:
		b.AddText(a.name, a.strings, a.valid)
	}
}

func numericValue(arr arrow.Array, i int) float64 {
	switch v := arr.(type) {
	case *array.Float64:
		return v.Value(i)
	case *array.Float32:
		return float64(v.Value(i))
	case *array.Int64:
		return float64(v.Value(i))
	case *array.Int32:
		return float64(v.Value(i))
	case *array.Int16:
		return float64(v.Value(i))
	case *array.Int8:
		return float64(v.Value(i))
	case *array.Uint64:
		return float64(v.Value(i))
	case *array.Uint32:
		return float64(v.Value(i))
	case *array.Uint16:
		return float64(v.Value(i))
	case *array.Uint8:
		return float64(v.Value(i))
	default:
		return 0
	}
}

func temporalValue(arr arrow.Array, i int) time.Time {
	switch v := arr.(type) {
	case *array.Timestamp:
		unit := v.DataType().(*arrow.TimestampType).Unit
		return v.Value(i).ToTime(unit)
	case *array.Date32:
		return v.Value(i).ToTime()
	case *array.Date64:
		return v.Value(i).ToTime()
	default:
		return time.Time{}
	}
}
