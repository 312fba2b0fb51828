package timeseries

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/chronicle-lab/tsreport/internal/config"
	"github.com/chronicle-lab/tsreport/internal/dataset"
	"github.com/chronicle-lab/tsreport/internal/models"
	"github.com/chronicle-lab/tsreport/internal/sampling"
	"github.com/chronicle-lab/tsreport/internal/stats"
	"github.com/chronicle-lab/tsreport/internal/utils"
)

const (
	// Intervals beyond this multiple of the median spacing count as gaps.
	gapFactor = 3.0

	// Reported gaps are capped so a sparse axis cannot flood the report.
	maxReportedGaps = 20

	// Preview series for charts are thinned to at most this many points.
	maxPreviewPoints = 500
)

// Result bundles everything the time-aware analysis produces.
type Result struct {
	TimeInfo     models.TimeInfo
	Sampling     models.SamplingDecision
	Stationarity map[string]models.ADFResult
	Preview      []models.TimePoint
	Warnings     []string
}

// Analyzer runs the sampled time-series stage: axis profiling, stationarity
// testing and chart preview extraction.
type Analyzer struct {
	cfg     config.AnalysisConfig
	sampler *sampling.Engine
	logger  *slog.Logger
}

func NewAnalyzer(cfg config.AnalysisConfig, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{cfg: cfg, sampler: sampling.NewEngine(logger), logger: logger}
}

// Analyze profiles the time axis on the full dataset, then samples before
// the expensive per-column work. timeColumn must name a temporal column.
func (a *Analyzer) Analyze(ctx context.Context, ds *dataset.Dataset, timeColumn string) (*Result, error) {
	col, ok := ds.Column(timeColumn)
	if !ok || col.Type != dataset.Temporal {
		return nil, &utils.AppError{
			Op:   "timeseries.Analyze",
			Code: utils.CodeInternal,
			Msg:  fmt.Sprintf("column %q is not a temporal column", timeColumn),
		}
	}

	result := &Result{
		TimeInfo:     Profile(col),
		Stationarity: make(map[string]models.ADFResult),
	}

	sampled, decision := a.sampler.Plan(ds, timeColumn, a.cfg.PerformanceThreshold)
	result.Sampling = decision
	if decision.Applied() {
		a.logger.Info("dataset sampled for time-series analysis",
			slog.Int("original", decision.OriginalSize),
			slog.Int("sampled", decision.SampledSize),
			slog.String("method", decision.Method))
	}

	ordered, err := sampled.SortByTime(timeColumn)
	if err != nil {
		return nil, err
	}

	numeric := ordered.NumericColumnNames()
	tested := numeric
	if len(tested) > a.cfg.ADFMaxColumns {
		tested = tested[:a.cfg.ADFMaxColumns]
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("stationarity tests limited to first %d of %d numeric columns", a.cfg.ADFMaxColumns, len(numeric)))
	}
	for _, name := range tested {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		valCol, _ := ordered.Column(name)
		result.Stationarity[name] = stats.ADFTest(valCol.FiniteValues(), a.cfg.ADFSignificance)
	}

	if len(numeric) > 0 {
		result.Preview = previewPoints(ordered, timeColumn, numeric[0])
	}
	return result, nil
}

// Profile characterises a temporal column: bounds, inferred frequency and
// gaps relative to the typical spacing.
func Profile(col *dataset.Column) models.TimeInfo {
	times := validTimes(col)
	info := models.TimeInfo{
		TimeColumn:  col.Name,
		TotalPoints: len(times),
	}
	if len(times) == 0 {
		return info
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	start, end := times[0], times[len(times)-1]
	duration := utils.DurationDays(start, end)
	info.Start = &start
	info.End = &end
	info.DurationDays = &duration

	if len(times) < 2 {
		info.Frequency = "single_point"
		return info
	}

	intervals := make([]float64, len(times)-1)
	for i := 1; i < len(times); i++ {
		intervals[i-1] = times[i].Sub(times[i-1]).Hours() / 24
	}
	median := medianOf(intervals)
	info.Frequency = classifyFrequency(median)
	info.Gaps = detectGaps(times, median)
	return info
}

func validTimes(col *dataset.Column) []time.Time {
	out := make([]time.Time, 0, len(col.Times))
	for i, t := range col.Times {
		if col.Valid[i] {
			out = append(out, t)
		}
	}
	return out
}

func medianOf(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// classifyFrequency maps a median spacing in days onto a human label.
func classifyFrequency(days float64) string {
	switch {
	case days <= 0:
		return "irregular"
	case days >= 0.9 && days <= 1.1:
		return "daily"
	case days >= 6.5 && days <= 7.5:
		return "weekly"
	case days >= 28 && days <= 31:
		return "monthly"
	case days >= 360 && days <= 370:
		return "yearly"
	default:
		return fmt.Sprintf("%.1f days", days)
	}
}

// detectGaps flags intervals well above the median spacing. Gaps are
// returned largest first, capped.
func detectGaps(times []time.Time, medianDays float64) []models.Gap {
	if medianDays <= 0 {
		return nil
	}
	var gaps []models.Gap
	for i := 1; i < len(times); i++ {
		days := times[i].Sub(times[i-1]).Hours() / 24
		if days > gapFactor*medianDays {
			gaps = append(gaps, models.Gap{
				Start:        times[i-1],
				End:          times[i],
				DurationDays: days,
			})
		}
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i].DurationDays > gaps[j].DurationDays })
	if len(gaps) > maxReportedGaps {
		gaps = gaps[:maxReportedGaps]
	}
	return gaps
}

// previewPoints extracts an evenly thinned (timestamp, value) series of the
// given numeric column for charting.
func previewPoints(ds *dataset.Dataset, timeColumn, valueColumn string) []models.TimePoint {
	timeCol, _ := ds.Column(timeColumn)
	valCol, ok := ds.Column(valueColumn)
	if !ok || valCol.Type != dataset.Numeric {
		return nil
	}

	var points []models.TimePoint
	for i := 0; i < timeCol.Len(); i++ {
		if !timeCol.Valid[i] || !valCol.Valid[i] {
			continue
		}
		if math.IsNaN(valCol.Floats[i]) || math.IsInf(valCol.Floats[i], 0) {
			continue
		}
		points = append(points, models.TimePoint{Timestamp: timeCol.Times[i], Value: valCol.Floats[i]})
	}
	if len(points) <= maxPreviewPoints {
		return points
	}
	stride := float64(len(points)) / float64(maxPreviewPoints)
	thinned := make([]models.TimePoint, 0, maxPreviewPoints)
	for i := 0; i < maxPreviewPoints; i++ {
		thinned = append(thinned, points[int(float64(i)*stride)])
	}
	return thinned
}
