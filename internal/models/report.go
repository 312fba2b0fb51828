package models

import (
	"math"
	"time"
)

// Finite returns a pointer to v when it is a finite float, nil otherwise.
// Report fields use it so NaN/Inf never leak into serialized output.
func Finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// FileInfo describes the analyzed table.
type FileInfo struct {
	Name           string            `json:"name,omitempty"`
	Rows           int               `json:"rows"`
	Columns        int               `json:"columns"`
	NumericColumns int               `json:"numeric_columns"`
	ColumnTypes    map[string]string `json:"column_types,omitempty"`
}

// Gap is a detected hole in an otherwise regular time axis.
type Gap struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	DurationDays float64   `json:"duration_days"`
}

// TimeInfo summarises the detected time axis. All fields are null when no
// usable time column exists.
type TimeInfo struct {
	TimeColumn   string     `json:"time_column,omitempty"`
	Start        *time.Time `json:"start,omitempty"`
	End          *time.Time `json:"end,omitempty"`
	DurationDays *float64   `json:"duration_days,omitempty"`
	TotalPoints  int        `json:"total_points"`
	Frequency    string     `json:"frequency,omitempty"`
	Gaps         []Gap      `json:"gaps,omitempty"`
}

// OutlierStats is an IQR-based outlier census for one column.
type OutlierStats struct {
	Count      int      `json:"count"`
	Percentage float64  `json:"percentage"`
	LowerBound *float64 `json:"lower_bound,omitempty"`
	UpperBound *float64 `json:"upper_bound,omitempty"`
}

// ColumnStats carries descriptive statistics for a numeric column.
// Quantile-family fields are null when only mergeable aggregates were
// computed (chunked path).
type ColumnStats struct {
	Count       int           `json:"count"`
	Mean        *float64      `json:"mean"`
	Median      *float64      `json:"median,omitempty"`
	Std         *float64      `json:"std"`
	Min         *float64      `json:"min"`
	Max         *float64      `json:"max"`
	Q1          *float64      `json:"q1,omitempty"`
	Q3          *float64      `json:"q3,omitempty"`
	Skewness    *float64      `json:"skewness,omitempty"`
	Kurtosis    *float64      `json:"kurtosis,omitempty"`
	Outliers    *OutlierStats `json:"outliers,omitempty"`
	Approximate bool          `json:"approximate,omitempty"`
}

// MissingStats is the per-column missing-value census.
type MissingStats struct {
	TotalCount     int     `json:"total_count"`
	NullCount      int     `json:"null_count"`
	NonNullCount   int     `json:"non_null_count"`
	NullPercentage float64 `json:"null_percentage"`
}

// CorrelationResult is a labelled correlation matrix. Approximate marks
// matrices produced by the chunk-merge shortcut rather than a full pass.
type CorrelationResult struct {
	Columns     []string             `json:"columns"`
	Matrix      map[string]map[string]float64 `json:"matrix"`
	SampleSize  int                  `json:"sample_size"`
	Excluded    []string             `json:"excluded,omitempty"`
	Approximate bool                 `json:"approximate,omitempty"`
}

// ADFResult reports one Augmented Dickey-Fuller run. On degenerate input all
// numeric fields are null and Interpretation explains why.
type ADFResult struct {
	Statistic      *float64           `json:"adf_statistic"`
	PValue         *float64           `json:"p_value"`
	CriticalValues map[string]float64 `json:"critical_values,omitempty"`
	IsStationary   *bool              `json:"is_stationary"`
	Lags           int                `json:"lags,omitempty"`
	Significance   float64            `json:"significance,omitempty"`
	Interpretation string             `json:"interpretation"`
}

// Sampling method labels attached to SamplingDecision.
const (
	SamplingNone                   = "none"
	SamplingRandom                 = "random"
	SamplingSmartTimeSeries        = "smart_time_series"
	SamplingRandomFallback         = "random_fallback"
	SamplingRandomFallbackLowQuality = "random_fallback_low_quality"
)

// SamplingDecision records how (and whether) the dataset was reduced before
// the expensive time-series analysis. Immutable once created.
type SamplingDecision struct {
	OriginalSize    int     `json:"original_size"`
	SampledSize     int     `json:"sampled_size"`
	Method          string  `json:"sampling_method"`
	Ratio           float64 `json:"sampling_ratio"`
	PerformanceGain float64 `json:"performance_gain"`
}

// Applied reports whether any reduction happened.
func (d SamplingDecision) Applied() bool {
	return d.Method != SamplingNone
}

// TimePoint is one merged time-series observation.
type TimePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// PerformanceMetrics summarises the run itself.
type PerformanceMetrics struct {
	DurationSeconds  float64 `json:"duration_seconds"`
	OriginalRows     int     `json:"original_rows"`
	ProcessedRows    int     `json:"processed_rows"`
	ChunksPlanned    int     `json:"chunks_planned"`
	ColumnsAnalyzed  int     `json:"columns_analyzed"`
	ADFTestsRun      int     `json:"adf_tests_run"`
	PeakMemoryMB     float64 `json:"peak_memory_mb,omitempty"`
}

// ResourceSnapshot is a point-in-time view of process and system resources.
type ResourceSnapshot struct {
	RSSMB         float64   `json:"rss_mb"`
	VMSMB         float64   `json:"vms_mb"`
	MemoryPercent float64   `json:"memory_percent"`
	CPUPercent    float64   `json:"cpu_percent"`
	AvailableMB   float64   `json:"available_mb"`
	TotalMB       float64   `json:"total_mb"`
	Taken         time.Time `json:"taken"`
}

// ChartBundle carries rendered chart payloads for the dashboard. Payloads
// are opaque to this core.
type ChartBundle struct {
	TimeSeries    []byte `json:"-"`
	Correlation   []byte `json:"-"`
	MissingValues []byte `json:"-"`
}

// Report is the complete analysis output. It is either fully populated or
// not produced at all; omitted sections are explicitly null, never missing.
type Report struct {
	ID            string                  `json:"id"`
	FileInfo      FileInfo                `json:"file_info"`
	TimeInfo      TimeInfo                `json:"time_info"`
	Statistics    map[string]ColumnStats  `json:"statistics"`
	MissingValues map[string]MissingStats `json:"missing_values"`
	Correlation   *CorrelationResult      `json:"correlation_matrix"`
	Stationarity  map[string]ADFResult    `json:"stationarity_tests"`
	Sampling      *SamplingDecision       `json:"sampling_info"`
	Charts        ChartBundle             `json:"-"`
	Performance   PerformanceMetrics      `json:"performance_metrics"`
	Warnings      []string                `json:"warnings"`
	CreatedAt     time.Time               `json:"created_at"`
}
