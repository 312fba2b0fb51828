package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-lab/tsreport/internal/config"
	"github.com/chronicle-lab/tsreport/internal/dataset"
	"github.com/chronicle-lab/tsreport/internal/models"
	"github.com/chronicle-lab/tsreport/internal/utils"
)

func testAnalyzer(t *testing.T) (*Analyzer, *config.Config) {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return NewAnalyzer(cfg, nil, nil), cfg
}

func TestAnalyzePlainNumericDataset(t *testing.T) {
	analyzer, _ := testAnalyzer(t)
	rows := 50
	a := make([]float64, rows)
	b := make([]float64, rows)
	for i := 0; i < rows; i++ {
		a[i] = float64(i)
		b[i] = float64(i % 5)
	}
	ds, _, err := dataset.NewBuilder().
		AddNumeric("a", a, nil).
		AddNumeric("b", b, nil).
		Build()
	require.NoError(t, err)

	report, err := analyzer.Analyze(context.Background(), ds, Options{FileName: "plain.csv"})
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, 50, report.FileInfo.Rows)
	assert.Equal(t, 2, report.FileInfo.NumericColumns)
	require.Contains(t, report.Statistics, "a")
	assert.False(t, report.Statistics["a"].Approximate)
	assert.NotNil(t, report.Statistics["a"].Median, "single-chunk path computes quantiles")
	assert.Len(t, report.MissingValues, 2)
	require.NotNil(t, report.Correlation)
	assert.Nil(t, report.Sampling, "no time column, no time-series stage")
	assert.Empty(t, report.TimeInfo.TimeColumn)
	assert.Equal(t, 1, report.Performance.ChunksPlanned)
	assert.Equal(t, 0, report.Performance.ADFTestsRun)
}

func TestAnalyzeOverBudgetSamplesCorrelation(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Analysis.PerformanceThreshold = 500
	cfg.Resources.MaxMemoryMB = 0.001 // any live process exceeds this
	analyzer := NewAnalyzer(cfg, nil, nil)

	rows := 2000
	a := make([]float64, rows)
	b := make([]float64, rows)
	for i := 0; i < rows; i++ {
		a[i] = float64(i)
		b[i] = float64(i * 2)
	}
	ds, _, err := dataset.NewBuilder().
		AddNumeric("a", a, nil).
		AddNumeric("b", b, nil).
		Build()
	require.NoError(t, err)

	report, err := analyzer.Analyze(context.Background(), ds, Options{FileName: "hot.csv"})
	require.NoError(t, err)

	require.NotNil(t, report.Correlation)
	assert.Equal(t, 500, report.Correlation.SampleSize, "correlation falls back to the sampled subset")
	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "memory budget exceeded") {
			found = true
		}
	}
	assert.True(t, found, "warnings: %v", report.Warnings)
}

func TestAnalyzeStationarityEmptyWithoutTimeColumn(t *testing.T) {
	analyzer, _ := testAnalyzer(t)
	ds, _, err := dataset.NewBuilder().
		AddNumeric("a", []float64{1, 2, 3, 4, 5}, nil).
		Build()
	require.NoError(t, err)

	report, err := analyzer.Analyze(context.Background(), ds, Options{FileName: "tiny.csv"})
	require.NoError(t, err)

	require.NotNil(t, report.Stationarity, "stationarity map must serialize as an object, not null")
	assert.Empty(t, report.Stationarity)
}

func TestAnalyzeExcludesConstantColumnFromCorrelation(t *testing.T) {
	analyzer, _ := testAnalyzer(t)
	rows := 40
	a := make([]float64, rows)
	b := make([]float64, rows)
	c := make([]float64, rows)
	for i := 0; i < rows; i++ {
		a[i] = float64(i)
		b[i] = 3.14
		c[i] = float64(rows - i)
	}
	ds, _, err := dataset.NewBuilder().
		AddNumeric("a", a, nil).
		AddNumeric("b", b, nil).
		AddNumeric("c", c, nil).
		Build()
	require.NoError(t, err)

	report, err := analyzer.Analyze(context.Background(), ds, Options{})
	require.NoError(t, err)

	require.NotNil(t, report.Correlation)
	assert.Contains(t, report.Correlation.Excluded, "b")
	assert.NotContains(t, report.Correlation.Columns, "b")

	named := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "b") && strings.Contains(w, "constant") {
			named = true
		}
	}
	assert.True(t, named, "warning must name the constant column: %v", report.Warnings)
}

func TestAnalyzeLargeHourlySeriesSamples(t *testing.T) {
	analyzer, cfg := testAnalyzer(t)
	rows := 200000
	base := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	times := make([]time.Time, rows)
	values := make([]float64, rows)
	for i := 0; i < rows; i++ {
		times[i] = base.Add(time.Duration(i) * time.Hour)
		values[i] = float64(i % 24)
	}
	ds, _, err := dataset.NewBuilder().
		AddTemporal("timestamp", times, nil).
		AddNumeric("load", values, nil).
		Build()
	require.NoError(t, err)

	report, err := analyzer.Analyze(context.Background(), ds, Options{TimeColumnHint: "timestamp"})
	require.NoError(t, err)

	require.NotNil(t, report.Sampling)
	assert.True(t, report.Sampling.Applied())
	assert.LessOrEqual(t, report.Sampling.SampledSize, cfg.Analysis.PerformanceThreshold)
	assert.Equal(t, rows, report.Sampling.OriginalSize)
	assert.Equal(t, "timestamp", report.TimeInfo.TimeColumn)
	assert.Contains(t, report.Stationarity, "load")
	assert.Greater(t, report.Performance.ADFTestsRun, 0)
}

func TestAnalyzeEmptyDataset(t *testing.T) {
	analyzer, _ := testAnalyzer(t)
	task := models.NewTaskRecord("t1")
	require.NoError(t, task.Start())

	_, err := analyzer.Analyze(context.Background(), nil, Options{Task: task})
	require.Error(t, err)
	assert.Equal(t, utils.CodeEmptyDataset, utils.ErrorCode(err))
	assert.Equal(t, models.TaskFailed, task.Status())
}

func TestAnalyzeNoNumericColumns(t *testing.T) {
	analyzer, _ := testAnalyzer(t)
	ds, _, err := dataset.NewBuilder().
		AddText("label", []string{"x", "y", "z"}, nil).
		Build()
	require.NoError(t, err)

	_, err = analyzer.Analyze(context.Background(), ds, Options{})
	require.Error(t, err)
	assert.Equal(t, utils.CodeNoNumericColumns, utils.ErrorCode(err))
}

func TestAnalyzeChunkedStatisticsApproximate(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	// Shrink the budget so even a modest dataset needs several chunks.
	cfg.Chunking.MemoryBudgetMB = 0.05
	cfg.Chunking.MinChunkRows = 500
	analyzer := NewAnalyzer(cfg, nil, nil)

	rows := 20000
	values := make([]float64, rows)
	for i := range values {
		values[i] = float64(i)
	}
	ds, _, err := dataset.NewBuilder().AddNumeric("v", values, nil).Build()
	require.NoError(t, err)

	report, err := analyzer.Analyze(context.Background(), ds, Options{})
	require.NoError(t, err)
	assert.Greater(t, report.Performance.ChunksPlanned, 1)

	st, ok := report.Statistics["v"]
	require.True(t, ok)
	assert.True(t, st.Approximate)
	// Mergeable aggregates stay exact regardless of chunking.
	assert.Equal(t, rows, st.Count)
	require.NotNil(t, st.Mean)
	assert.InDelta(t, float64(rows-1)/2, *st.Mean, 1e-9)
	require.NotNil(t, st.Min)
	assert.Equal(t, 0.0, *st.Min)
	require.NotNil(t, st.Max)
	assert.Equal(t, float64(rows-1), *st.Max)
	assert.NotNil(t, st.Median, "quantiles filled from the sampled pass")
}

func TestAnalyzeTaskLifecycle(t *testing.T) {
	analyzer, _ := testAnalyzer(t)
	task := models.NewTaskRecord("t2")
	require.NoError(t, task.Start())

	ds, _, err := dataset.NewBuilder().AddNumeric("v", []float64{1, 2, 3, 4, 5}, nil).Build()
	require.NoError(t, err)

	_, err = analyzer.Analyze(context.Background(), ds, Options{Task: task})
	require.NoError(t, err)

	assert.Equal(t, models.TaskCompleted, task.Status())
	progress, _ := task.Progress()
	assert.Equal(t, 100, progress)
}

func TestAnalyzeUnusableTimeHintWarns(t *testing.T) {
	analyzer, _ := testAnalyzer(t)
	ds, _, err := dataset.NewBuilder().
		AddNumeric("v", []float64{1, 2, 3}, nil).
		Build()
	require.NoError(t, err)

	report, err := analyzer.Analyze(context.Background(), ds, Options{TimeColumnHint: "nope"})
	require.NoError(t, err)
	require.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[0], "nope")
}
