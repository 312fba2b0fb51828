package timeseries

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-lab/tsreport/internal/config"
	"github.com/chronicle-lab/tsreport/internal/dataset"
	"github.com/chronicle-lab/tsreport/internal/models"
)

func analysisConfig() config.AnalysisConfig {
	return config.AnalysisConfig{
		PerformanceThreshold: 10000,
		MaxWorkers:           2,
		ADFMaxColumns:        5,
		ADFSignificance:      0.05,
	}
}

func temporalColumn(t *testing.T, times []time.Time, valid []bool) *dataset.Column {
	t.Helper()
	ds, _, err := dataset.NewBuilder().AddTemporal("ts", times, valid).Build()
	require.NoError(t, err)
	col, ok := ds.Column("ts")
	require.True(t, ok)
	return col
}

func TestProfileDailyFrequency(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	times := make([]time.Time, 30)
	for i := range times {
		times[i] = base.AddDate(0, 0, i)
	}

	info := Profile(temporalColumn(t, times, nil))
	assert.Equal(t, "daily", info.Frequency)
	assert.Equal(t, 30, info.TotalPoints)
	require.NotNil(t, info.Start)
	require.NotNil(t, info.DurationDays)
	assert.InDelta(t, 29.0, *info.DurationDays, 1e-9)
	assert.Empty(t, info.Gaps)
}

func TestProfileDetectsGaps(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var times []time.Time
	for i := 0; i < 10; i++ {
		times = append(times, base.AddDate(0, 0, i))
	}
	// Two weeks of silence, then daily resumes.
	resume := base.AddDate(0, 0, 24)
	for i := 0; i < 10; i++ {
		times = append(times, resume.AddDate(0, 0, i))
	}

	info := Profile(temporalColumn(t, times, nil))
	assert.Equal(t, "daily", info.Frequency)
	require.Len(t, info.Gaps, 1)
	assert.InDelta(t, 15.0, info.Gaps[0].DurationDays, 1e-9)
	assert.Equal(t, base.AddDate(0, 0, 9), info.Gaps[0].Start)
}

func TestProfileSinglePoint(t *testing.T) {
	info := Profile(temporalColumn(t, []time.Time{time.Now()}, nil))
	assert.Equal(t, "single_point", info.Frequency)
	assert.Equal(t, 1, info.TotalPoints)
}

func TestProfileEmpty(t *testing.T) {
	info := Profile(temporalColumn(t, []time.Time{{}, {}}, []bool{false, false}))
	assert.Equal(t, 0, info.TotalPoints)
	assert.Nil(t, info.Start)
	assert.Nil(t, info.DurationDays)
}

func TestProfileUnsortedInput(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	times := []time.Time{
		base.AddDate(0, 0, 14),
		base,
		base.AddDate(0, 0, 7),
		base.AddDate(0, 0, 21),
	}
	info := Profile(temporalColumn(t, times, nil))
	assert.Equal(t, "weekly", info.Frequency)
	assert.Equal(t, base, *info.Start)
	assert.Equal(t, base.AddDate(0, 0, 21), *info.End)
}

func TestClassifyFrequency(t *testing.T) {
	assert.Equal(t, "daily", classifyFrequency(1.0))
	assert.Equal(t, "weekly", classifyFrequency(7.0))
	assert.Equal(t, "monthly", classifyFrequency(30.0))
	assert.Equal(t, "yearly", classifyFrequency(365.25))
	assert.Equal(t, "3.5 days", classifyFrequency(3.5))
	assert.Equal(t, "irregular", classifyFrequency(0))
}

func TestAnalyzeRunsStationarityTests(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := 200
	times := make([]time.Time, rows)
	a := make([]float64, rows)
	b := make([]float64, rows)
	for i := 0; i < rows; i++ {
		times[i] = base.Add(time.Duration(i) * time.Hour)
		a[i] = float64(i % 7)
		b[i] = float64(i)
	}
	ds, _, err := dataset.NewBuilder().
		AddTemporal("ts", times, nil).
		AddNumeric("a", a, nil).
		AddNumeric("b", b, nil).
		Build()
	require.NoError(t, err)

	analyzer := NewAnalyzer(analysisConfig(), nil)
	result, err := analyzer.Analyze(context.Background(), ds, "ts")
	require.NoError(t, err)

	assert.Equal(t, models.SamplingNone, result.Sampling.Method)
	assert.Len(t, result.Stationarity, 2)
	assert.Contains(t, result.Stationarity, "a")
	assert.Contains(t, result.Stationarity, "b")
	assert.NotEmpty(t, result.Preview)
	assert.LessOrEqual(t, len(result.Preview), maxPreviewPoints)
}

func TestAnalyzeCapsStationarityColumns(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := 50
	times := make([]time.Time, rows)
	for i := range times {
		times[i] = base.Add(time.Duration(i) * time.Minute)
	}
	builder := dataset.NewBuilder().AddTemporal("ts", times, nil)
	for _, name := range []string{"c1", "c2", "c3", "c4", "c5", "c6", "c7"} {
		values := make([]float64, rows)
		for i := range values {
			values[i] = float64(i % 11)
		}
		builder = builder.AddNumeric(name, values, nil)
	}
	ds, _, err := builder.Build()
	require.NoError(t, err)

	analyzer := NewAnalyzer(analysisConfig(), nil)
	result, err := analyzer.Analyze(context.Background(), ds, "ts")
	require.NoError(t, err)

	assert.Len(t, result.Stationarity, 5)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "limited to first 5 of 7")
}

func TestAnalyzeRejectsNonTemporalColumn(t *testing.T) {
	ds, _, err := dataset.NewBuilder().AddNumeric("v", []float64{1, 2, 3}, nil).Build()
	require.NoError(t, err)

	analyzer := NewAnalyzer(analysisConfig(), nil)
	_, err = analyzer.Analyze(context.Background(), ds, "v")
	require.Error(t, err)
}
