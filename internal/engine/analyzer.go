package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chronicle-lab/tsreport/internal/chunker"
	"github.com/chronicle-lab/tsreport/internal/config"
	"github.com/chronicle-lab/tsreport/internal/dataset"
	"github.com/chronicle-lab/tsreport/internal/loader"
	"github.com/chronicle-lab/tsreport/internal/merge"
	"github.com/chronicle-lab/tsreport/internal/models"
	"github.com/chronicle-lab/tsreport/internal/parallel"
	"github.com/chronicle-lab/tsreport/internal/resources"
	"github.com/chronicle-lab/tsreport/internal/sampling"
	"github.com/chronicle-lab/tsreport/internal/stats"
	"github.com/chronicle-lab/tsreport/internal/timeseries"
	"github.com/chronicle-lab/tsreport/internal/utils"
	"github.com/chronicle-lab/tsreport/internal/viz"
)

// Options shapes a single analysis run.
type Options struct {
	FileName       string
	TimeColumnHint string

	// Task, when set, receives progress updates as stages complete.
	Task *models.TaskRecord
}

// Analyzer orchestrates the adaptive analysis flow: validation, chunk
// planning, parallel column statistics, merging, time-series analysis and
// chart assembly. Degraded stages add warnings; only validation failures
// abort the run.
type Analyzer struct {
	cfg        *config.Config
	logger     *slog.Logger
	planner    *chunker.Planner
	sampler    *sampling.Engine
	timeseries *timeseries.Analyzer
	renderer   *viz.Renderer
	monitor    *resources.Monitor
}

func NewAnalyzer(cfg *config.Config, logger *slog.Logger, monitor *resources.Monitor) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if monitor == nil {
		monitor = resources.NewMonitor(cfg.Resources, logger)
	}
	return &Analyzer{
		cfg:        cfg,
		logger:     logger,
		planner:    chunker.NewPlanner(cfg.Chunking, logger),
		sampler:    sampling.NewEngine(logger),
		timeseries: timeseries.NewAnalyzer(cfg.Analysis, logger),
		renderer:   viz.NewRenderer(logger),
		monitor:    monitor,
	}
}

// Analyze runs the full pipeline over an in-memory dataset.
func (a *Analyzer) Analyze(ctx context.Context, ds *dataset.Dataset, opts Options) (*models.Report, error) {
	started := time.Now()
	report := &models.Report{
		ID:           uuid.NewString(),
		Warnings:     []string{},
		Stationarity: map[string]models.ADFResult{},
		CreatedAt:    started.UTC(),
	}

	if ds == nil || ds.Rows() == 0 {
		a.failTask(opts.Task, "dataset is empty")
		return nil, &utils.AppError{
			Op:   "engine.Analyze",
			Code: utils.CodeEmptyDataset,
			Msg:  "dataset has no rows",
		}
	}

	timeColumn := loader.DetectTimeColumn(ds, opts.TimeColumnHint)
	if opts.TimeColumnHint != "" && timeColumn != opts.TimeColumnHint {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("requested time column %q is not usable, detected %q instead", opts.TimeColumnHint, timeColumn))
	}

	numeric := ds.NumericColumnNames()
	if len(numeric) == 0 {
		a.failTask(opts.Task, "no numeric columns")
		return nil, &utils.AppError{
			Op:   "engine.Analyze",
			Code: utils.CodeNoNumericColumns,
			Msg:  "dataset has no numeric columns to analyze",
		}
	}

	report.FileInfo = models.FileInfo{
		Name:           opts.FileName,
		Rows:           ds.Rows(),
		Columns:        len(ds.ColumnNames()),
		NumericColumns: len(numeric),
		ColumnTypes:    ds.ColumnTypes(),
	}
	a.updateTask(opts.Task, 10, "planning")

	plan, err := a.planner.Plan(ds, timeColumn)
	if err != nil {
		a.failTask(opts.Task, err.Error())
		return nil, err
	}
	// All row indexing below goes through the planned dataset, which is
	// time-sorted when the plan is time-aligned.
	ds = plan.Dataset
	a.logger.Info("analysis started",
		slog.String("report_id", report.ID),
		slog.Int("rows", ds.Rows()),
		slog.Int("chunks", len(plan.Chunks)),
		slog.String("strategy", plan.Strategy))

	report.Statistics = a.columnStatistics(ctx, ds, plan, numeric, report)
	a.monitor.CheckAndReclaim()
	a.updateTask(opts.Task, 50, "statistics done")

	report.MissingValues = stats.MissingValues(ds)

	// The correlation pass is the most memory-hungry stage left; when the
	// process is already over its hard cap, fall back to a sampled subset.
	corrInput := ds
	if a.monitor.OverBudget() {
		sampledDS, decision := a.sampler.Plan(ds, timeColumn, a.cfg.Analysis.PerformanceThreshold)
		if decision.Applied() {
			corrInput = sampledDS
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("memory budget exceeded, correlation computed on %d of %d rows", corrInput.Rows(), ds.Rows()))
		}
	}
	corr, corrWarnings := stats.CorrelationMatrix(corrInput)
	report.Correlation = corr
	report.Warnings = append(report.Warnings, corrWarnings...)
	a.monitor.CheckAndReclaim()
	a.updateTask(opts.Task, 70, "correlation done")

	var preview []models.TimePoint
	if timeColumn != "" {
		tsResult, err := a.timeseries.Analyze(ctx, ds, timeColumn)
		if err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("time-series analysis failed: %v", err))
		} else {
			report.TimeInfo = tsResult.TimeInfo
			report.Stationarity = tsResult.Stationarity
			report.Sampling = &tsResult.Sampling
			report.Warnings = append(report.Warnings, tsResult.Warnings...)
			preview = tsResult.Preview
		}
	}
	a.monitor.CheckAndReclaim()
	a.updateTask(opts.Task, 90, "time-series done")

	charts, chartWarnings := a.renderer.Build(preview, firstOrEmpty(numeric), report.Correlation, report.MissingValues)
	report.Warnings = append(report.Warnings, chartWarnings...)
	report.Charts = charts

	report.Performance = models.PerformanceMetrics{
		DurationSeconds: time.Since(started).Seconds(),
		OriginalRows:    report.FileInfo.Rows,
		ProcessedRows:   processedRows(report),
		ChunksPlanned:   len(plan.Chunks),
		ColumnsAnalyzed: len(numeric),
		ADFTestsRun:     len(report.Stationarity),
		PeakMemoryMB:    a.monitor.PeakMB(),
	}

	a.completeTask(opts.Task)
	completed := []any{
		slog.String("report_id", report.ID),
		slog.Float64("seconds", report.Performance.DurationSeconds),
		slog.Int("warnings", len(report.Warnings)),
	}
	if slope, ok := a.monitor.TrendMBPerSecond(); ok {
		completed = append(completed, slog.Float64("memory_trend_mb_per_s", slope))
	}
	a.logger.Info("analysis completed", completed...)
	return report, nil
}

// columnStatistics dispatches per-column work across the worker pool. With
// a single chunk every statistic comes from one full pass; with multiple
// chunks the mergeable aggregates are exact and the quantile family is
// filled from a sample and flagged approximate.
func (a *Analyzer) columnStatistics(ctx context.Context, ds *dataset.Dataset, plan *chunker.Plan, numeric []string, report *models.Report) map[string]models.ColumnStats {
	poolOpts := parallel.Options{
		MaxWorkers: a.cfg.Analysis.MaxWorkers,
		Timeout:    a.cfg.Analysis.TaskTimeout,
		Logger:     a.logger,
	}

	if len(plan.Chunks) <= 1 {
		results := parallel.ProcessColumns(ctx, numeric, func(_ context.Context, name string) (*models.ColumnStats, error) {
			col, ok := ds.Column(name)
			if !ok {
				return nil, fmt.Errorf("column %s missing", name)
			}
			full := stats.Descriptive(col)
			if full == nil {
				return nil, fmt.Errorf("column %s has no valid values", name)
			}
			return full, nil
		}, poolOpts)
		return collectStats(results, report)
	}

	sampled, _ := a.sampler.Plan(ds, "", a.cfg.Analysis.PerformanceThreshold)

	results := parallel.ProcessColumns(ctx, numeric, func(_ context.Context, name string) (*models.ColumnStats, error) {
		var acc merge.ColumnAccumulator
		for _, desc := range plan.Chunks {
			chunk := a.planner.Chunk(ds, desc, false)
			col, ok := chunk.Column(name)
			if !ok {
				return nil, fmt.Errorf("column %s missing", name)
			}
			acc = acc.Merge(stats.Partial(col))
		}
		if acc.Count == 0 {
			return nil, fmt.Errorf("column %s has no valid values", name)
		}
		merged := acc.Finalize()

		// Quantiles do not merge across chunks; estimate them from the
		// sampled pass and mark the whole column approximate.
		if col, ok := sampled.Column(name); ok {
			if approx := stats.Descriptive(col); approx != nil {
				merged.Median = approx.Median
				merged.Q1 = approx.Q1
				merged.Q3 = approx.Q3
				merged.Skewness = approx.Skewness
				merged.Kurtosis = approx.Kurtosis
				merged.Outliers = approx.Outliers
			}
		}
		merged.Approximate = true
		return &merged, nil
	}, poolOpts)
	return collectStats(results, report)
}

func collectStats(results map[string]*models.ColumnStats, report *models.Report) map[string]models.ColumnStats {
	out := make(map[string]models.ColumnStats, len(results))
	for name, st := range results {
		if st == nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("statistics unavailable for column %s", name))
			continue
		}
		out[name] = *st
	}
	return out
}

func processedRows(report *models.Report) int {
	if report.Sampling != nil && report.Sampling.Applied() {
		return report.Sampling.SampledSize
	}
	return report.FileInfo.Rows
}

func firstOrEmpty(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func (a *Analyzer) updateTask(task *models.TaskRecord, progress int, stage string) {
	if task == nil {
		return
	}
	task.Update(progress, stage)
}

func (a *Analyzer) failTask(task *models.TaskRecord, reason string) {
	if task == nil {
		return
	}
	task.Fail(reason)
}

func (a *Analyzer) completeTask(task *models.TaskRecord) {
	if task == nil {
		return
	}
	task.Complete()
}
