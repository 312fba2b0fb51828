// Package sampling decides, per dataset, whether and how to reduce data
// volume before expensive time-series analysis: time-bucket resampling,
// stratified time sampling, or plain random sampling.
package sampling

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/chronicle-lab/tsreport/internal/dataset"
	"github.com/chronicle-lab/tsreport/internal/models"
)

// randomSeed fixes the random-sampling permutation for reproducible runs.
const randomSeed = 42

// minTimeQualityRatio is the non-null ratio below which a time column is
// considered too sparse for time-aware sampling.
const minTimeQualityRatio = 0.5

// Engine implements the adaptive sampling strategy.
type Engine struct {
	logger *slog.Logger
}

// NewEngine constructs a sampling engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Plan returns a (possibly reduced) dataset and the immutable decision that
// produced it. It never errors: every internal failure degrades to seeded
// random sampling, and a zero-row reduction is treated as a failure rather
// than a valid outcome.
func (e *Engine) Plan(ds *dataset.Dataset, timeColumn string, performanceThreshold int) (*dataset.Dataset, models.SamplingDecision) {
	originalSize := ds.Rows()
	decision := models.SamplingDecision{
		OriginalSize:    originalSize,
		SampledSize:     originalSize,
		Method:          models.SamplingNone,
		Ratio:           1.0,
		PerformanceGain: 1.0,
	}

	if originalSize <= performanceThreshold {
		return ds, decision
	}

	target := TargetSize(originalSize, performanceThreshold)

	timeCol, timeUsable := e.usableTimeColumn(ds, timeColumn)
	if timeColumn != "" && !timeUsable {
		// A declared time axis that is mostly null: time-aware strategies
		// would skew toward the few valid rows, so fall straight to random.
		sampled := e.randomSample(ds, target)
		return sampled, finishDecision(decision, sampled.Rows(), models.SamplingRandomFallbackLowQuality)
	}

	if timeUsable {
		if originalSize > 50000 {
			if resampled, freq, ok := e.tryResample(ds, timeColumn, timeCol, target); ok {
				e.logger.Info("time resampling accepted",
					slog.Int("original", originalSize),
					slog.Int("sampled", resampled.Rows()),
					slog.String("freq", freq))
				return resampled, finishDecision(decision, resampled.Rows(), "time_resample_"+freq)
			}
		}

		if sampled, err := e.smartTimeSeriesSample(ds, timeColumn, target); err == nil && sampled.Rows() > 0 {
			return sampled, finishDecision(decision, sampled.Rows(), models.SamplingSmartTimeSeries)
		} else if err != nil {
			e.logger.Warn("smart time sampling failed, using random fallback", slog.Any("error", err))
		}

		sampled := e.randomSample(ds, target)
		return sampled, finishDecision(decision, sampled.Rows(), models.SamplingRandomFallback)
	}

	sampled := e.randomSample(ds, target)
	return sampled, finishDecision(decision, sampled.Rows(), models.SamplingRandom)
}

// TargetSize computes the tiered optimal sample size, always capped at the
// performance threshold.
func TargetSize(originalSize, maxSampleSize int) int {
	if originalSize <= maxSampleSize {
		return originalSize
	}

	var target int
	switch {
	case originalSize > 100000:
		target = max(5000, originalSize*5/100)
	case originalSize > 50000:
		target = max(8000, originalSize*10/100)
	default:
		target = max(5000, originalSize*20/100)
	}
	return min(maxSampleSize, target)
}

// TimeRangeDays estimates max(time)-min(time) in days over non-null values.
// ok is false when the column has fewer than 2 valid rows or a non-null
// ratio under 10%, so callers can distinguish "unknown" from "zero span".
func TimeRangeDays(col *dataset.Column) (float64, bool) {
	if col == nil || col.Type != dataset.Temporal {
		return 0, false
	}
	if col.NonNullRatio() < 0.1 || col.NonNullCount() < 2 {
		return 0, false
	}
	min, max, ok := col.TimeBounds()
	if !ok {
		return 0, false
	}
	return max.Sub(min).Hours() / 24, true
}

func (e *Engine) usableTimeColumn(ds *dataset.Dataset, name string) (*dataset.Column, bool) {
	if name == "" {
		return nil, false
	}
	col, ok := ds.Column(name)
	if !ok || col.Type != dataset.Temporal {
		return nil, false
	}
	return col, col.NonNullRatio() >= minTimeQualityRatio
}

// tryResample aggregates numeric columns into fixed-width time buckets and
// accepts the result only when it is non-empty and within target.
func (e *Engine) tryResample(ds *dataset.Dataset, timeColumn string, timeCol *dataset.Column, target int) (*dataset.Dataset, string, bool) {
	var bucket time.Duration
	var freq string
	span, known := TimeRangeDays(timeCol)
	switch {
	case known && span > 365:
		bucket, freq = 24*time.Hour, "1d"
	case known && span > 30:
		bucket, freq = time.Hour, "1h"
	default:
		bucket, freq = 10*time.Minute, "10min"
	}

	resampled, err := Resample(ds, timeColumn, bucket)
	if err != nil {
		e.logger.Warn("time resampling failed", slog.Any("error", err))
		return nil, "", false
	}
	if resampled.Rows() == 0 || resampled.Rows() > target {
		return nil, "", false
	}
	return resampled, freq, true
}

// Resample buckets rows by truncated timestamp and aggregates every numeric
// column by mean per bucket. Non-numeric, non-time columns are dropped; rows
// with a null timestamp are skipped.
func Resample(ds *dataset.Dataset, timeColumn string, bucket time.Duration) (*dataset.Dataset, error) {
	timeCol, ok := ds.Column(timeColumn)
	if !ok || timeCol.Type != dataset.Temporal {
		return nil, fmt.Errorf("column %q is not a temporal column", timeColumn)
	}

	numericNames := make([]string, 0)
	for _, name := range ds.NumericColumnNames() {
		if name != timeColumn {
			numericNames = append(numericNames, name)
		}
	}

	type bucketAgg struct {
		sums   []float64
		counts []int
	}
	buckets := make(map[time.Time]*bucketAgg)

	for row := 0; row < ds.Rows(); row++ {
		if !timeCol.Valid[row] {
			continue
		}
		key := timeCol.Times[row].Truncate(bucket)
		agg, exists := buckets[key]
		if !exists {
			agg = &bucketAgg{sums: make([]float64, len(numericNames)), counts: make([]int, len(numericNames))}
			buckets[key] = agg
		}
		for ci, name := range numericNames {
			col, _ := ds.Column(name)
			if col.Valid[row] {
				agg.sums[ci] += col.Floats[row]
				agg.counts[ci]++
			}
		}
	}

	keys := make([]time.Time, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	builder := dataset.NewBuilder().AddTemporal(timeColumn, keys, nil)
	for ci, name := range numericNames {
		values := make([]float64, len(keys))
		valid := make([]bool, len(keys))
		for ki, key := range keys {
			agg := buckets[key]
			if agg.counts[ci] > 0 {
				values[ki] = agg.sums[ci] / float64(agg.counts[ci])
				valid[ki] = true
			}
		}
		builder.AddNumeric(name, values, valid)
	}

	resampled, _, err := builder.Build()
	return resampled, err
}

// smartTimeSeriesSample sorts by time and stratifies into 5-20 equal-width
// row strata, drawing an equal quota per stratum at uniform stride. Strata
// smaller than their quota are kept whole. This preserves the temporal
// distribution better than plain random sampling.
func (e *Engine) smartTimeSeriesSample(ds *dataset.Dataset, timeColumn string, target int) (*dataset.Dataset, error) {
	if ds.Rows() <= target {
		return ds, nil
	}

	sorted, err := ds.SortByTime(timeColumn)
	if err != nil {
		return nil, err
	}

	totalRows := sorted.Rows()
	numStrata := clampInt(target/100, 5, 20)
	rowsPerStratum := totalRows / numStrata
	quota := target / numStrata
	if rowsPerStratum == 0 || quota == 0 {
		return nil, fmt.Errorf("dataset too small to stratify into %d strata", numStrata)
	}

	indices := make([]int, 0, target)
	for i := 0; i < numStrata; i++ {
		start := i * rowsPerStratum
		end := min((i+1)*rowsPerStratum, totalRows)
		if start >= totalRows {
			break
		}
		size := end - start
		if size <= quota {
			for j := start; j < end; j++ {
				indices = append(indices, j)
			}
			continue
		}
		stride := size / quota
		for j := 0; j < quota; j++ {
			indices = append(indices, start+j*stride)
		}
	}
	if len(indices) > target {
		indices = indices[:target]
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("stratified sampling selected no rows")
	}

	return sorted.Select(indices), nil
}

// randomSample draws target rows with a fixed seed, preserving row order.
func (e *Engine) randomSample(ds *dataset.Dataset, target int) *dataset.Dataset {
	if ds.Rows() <= target {
		return ds
	}
	rng := rand.New(rand.NewSource(randomSeed))
	perm := rng.Perm(ds.Rows())[:target]
	sort.Ints(perm)
	return ds.Select(perm)
}

func finishDecision(d models.SamplingDecision, sampledSize int, method string) models.SamplingDecision {
	d.SampledSize = sampledSize
	d.Method = method
	if d.OriginalSize > 0 {
		d.Ratio = float64(sampledSize) / float64(d.OriginalSize)
	}
	if sampledSize > 0 {
		d.PerformanceGain = float64(d.OriginalSize) / float64(sampledSize)
	}
	return d
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
