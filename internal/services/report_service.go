package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chronicle-lab/tsreport/internal/dataset"
	"github.com/chronicle-lab/tsreport/internal/engine"
	"github.com/chronicle-lab/tsreport/internal/history"
	"github.com/chronicle-lab/tsreport/internal/metrics"
	"github.com/chronicle-lab/tsreport/internal/models"
	"github.com/chronicle-lab/tsreport/internal/utils"
)

// DatasetLoader loads a tabular file into the in-memory dataset form.
type DatasetLoader interface {
	Load(ctx context.Context, path string) (*dataset.Dataset, []string, error)
}

// ReportStore defines the persistence operations the service needs.
type ReportStore interface {
	SaveReport(ctx context.Context, report *models.Report) error
	GetReport(ctx context.Context, id string) (*models.Report, error)
	ListReports(ctx context.Context, limit int) ([]history.Summary, error)
}

// AnalyzeRequest carries the caller-facing parameters of one analysis.
type AnalyzeRequest struct {
	Path       string
	FileName   string
	TimeColumn string
}

// ReportService is the facade over loading, analysis and persistence.
type ReportService struct {
	logger    *slog.Logger
	loader    DatasetLoader
	analyzer  *engine.Analyzer
	store     ReportStore
	latencies *utils.LatencyTracker

	mu    sync.Mutex
	tasks map[string]*models.TaskRecord
}

// NewReportService constructs the report service facade. store may be nil
// when history persistence is disabled.
func NewReportService(logger *slog.Logger, loader DatasetLoader, analyzer *engine.Analyzer, store ReportStore) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{
		logger:    logger,
		loader:    loader,
		analyzer:  analyzer,
		store:     store,
		latencies: utils.NewLatencyTracker(1024),
		tasks:     make(map[string]*models.TaskRecord),
	}
}

// AnalyzeFile loads req.Path and runs the full analysis pipeline. The
// resulting report is persisted when a store is configured; persistence
// failures degrade to a warning rather than failing the analysis.
func (s *ReportService) AnalyzeFile(ctx context.Context, req AnalyzeRequest) (*models.Report, error) {
	task := models.NewTaskRecord(uuid.NewString())
	s.registerTask(task)
	if err := task.Start(); err != nil {
		return nil, err
	}

	start := time.Now()
	report, err := s.runAnalysis(ctx, req, task)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveAnalysis(duration, metrics.OutcomeError)
		s.logger.Error("analysis failed",
			slog.String("path", req.Path),
			slog.String("code", utils.ErrorCode(err)),
			slog.Any("error", err))
		return nil, err
	}

	s.latencies.Observe(duration)
	metrics.ObserveAnalysis(duration, metrics.OutcomeSuccess)
	if report.Sampling != nil && report.Sampling.Applied() {
		metrics.ObserveSampling(report.Sampling.Ratio)
	}
	metrics.ObserveChunks(report.Performance.ChunksPlanned)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("analysis latency",
			slog.Duration("p95", s.latencies.Percentile(95)),
			slog.Duration("mean", s.latencies.Mean()),
			slog.Int("samples", count))
	}

	if s.store != nil {
		if err := s.store.SaveReport(ctx, report); err != nil {
			report.Warnings = append(report.Warnings, "report could not be persisted to history")
			s.logger.Warn("report persistence failed",
				slog.String("report_id", report.ID),
				slog.Any("error", err))
		}
	}
	return report, nil
}

func (s *ReportService) runAnalysis(ctx context.Context, req AnalyzeRequest, task *models.TaskRecord) (*models.Report, error) {
	type loaded struct {
		ds       *dataset.Dataset
		warnings []string
	}
	res, loadMetrics, err := utils.Measured(s.logger, "load_dataset", func() (loaded, error) {
		ds, warnings, err := s.loader.Load(ctx, req.Path)
		return loaded{ds: ds, warnings: warnings}, err
	})
	if err != nil {
		task.Fail(err.Error())
		return nil, err
	}
	ds, loadWarnings := res.ds, res.warnings
	s.logger.Debug("dataset loaded",
		slog.String("path", req.Path),
		slog.Int("rows", ds.Rows()),
		slog.Duration("duration", loadMetrics.Duration))
	task.Update(5, "loaded")

	name := req.FileName
	if name == "" {
		name = req.Path
	}
	report, err := s.analyzer.Analyze(ctx, ds, engine.Options{
		FileName:       name,
		TimeColumnHint: req.TimeColumn,
		Task:           task,
	})
	if err != nil {
		return nil, err
	}
	report.Warnings = append(loadWarnings, report.Warnings...)
	return report, nil
}

// GetReport loads a previously persisted report.
func (s *ReportService) GetReport(ctx context.Context, id string) (*models.Report, error) {
	if s.store == nil {
		return nil, history.ErrNotFound
	}
	return s.store.GetReport(ctx, id)
}

// ListReports returns recent report summaries, newest first.
func (s *ReportService) ListReports(ctx context.Context, limit int) ([]history.Summary, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListReports(ctx, limit)
}

// TaskStatus looks up the task record created for an analysis run.
func (s *ReportService) TaskStatus(id string) (*models.TaskRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	return task, ok
}

// LatencyP95 returns the current p95 analysis latency.
func (s *ReportService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}

func (s *ReportService) registerTask(task *models.TaskRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
}
