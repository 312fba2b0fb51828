package viz

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/chronicle-lab/tsreport/internal/models"
)

// Renderer turns analysis results into self-contained HTML chart payloads.
// Chart failures never fail an analysis; they surface as warnings.
type Renderer struct {
	logger *slog.Logger
}

func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{logger: logger}
}

// Build renders every chart the report data supports. Missing inputs skip
// the corresponding chart silently; render errors come back as warnings.
func (r *Renderer) Build(preview []models.TimePoint, previewColumn string, corr *models.CorrelationResult, missing map[string]models.MissingStats) (models.ChartBundle, []string) {
	var bundle models.ChartBundle
	var warnings []string

	if len(preview) > 0 {
		if payload, err := r.timeSeriesChart(preview, previewColumn); err != nil {
			warnings = append(warnings, fmt.Sprintf("time-series chart failed: %v", err))
		} else {
			bundle.TimeSeries = payload
		}
	}
	if corr != nil && len(corr.Columns) > 0 {
		if payload, err := r.correlationHeatmap(corr); err != nil {
			warnings = append(warnings, fmt.Sprintf("correlation heatmap failed: %v", err))
		} else {
			bundle.Correlation = payload
		}
	}
	if len(missing) > 0 {
		if payload, err := r.missingValuesBar(missing); err != nil {
			warnings = append(warnings, fmt.Sprintf("missing-values chart failed: %v", err))
		} else {
			bundle.MissingValues = payload
		}
	}
	for _, w := range warnings {
		r.logger.Warn("chart rendering degraded", slog.String("warning", w))
	}
	return bundle, warnings
}

func (r *Renderer) timeSeriesChart(points []models.TimePoint, column string) ([]byte, error) {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s over time", column)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	xs := make([]string, len(points))
	ys := make([]opts.LineData, len(points))
	for i, p := range points {
		xs[i] = p.Timestamp.Format(time.RFC3339)
		ys[i] = opts.LineData{Value: p.Value}
	}
	line.SetXAxis(xs).AddSeries(column, ys)
	return render(line)
}

func (r *Renderer) correlationHeatmap(corr *models.CorrelationResult) ([]byte, error) {
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Correlation matrix"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Min:        -1,
			Max:        1,
			Calculable: opts.Bool(true),
		}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: corr.Columns}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: corr.Columns}),
	)

	var cells []opts.HeatMapData
	for i, row := range corr.Columns {
		for j, col := range corr.Columns {
			cells = append(cells, opts.HeatMapData{
				Value: [3]interface{}{i, j, corr.Matrix[row][col]},
			})
		}
	}
	hm.AddSeries("correlation", cells)
	return render(hm)
}

func (r *Renderer) missingValuesBar(missing map[string]models.MissingStats) ([]byte, error) {
	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([]opts.BarData, len(names))
	for i, name := range names {
		values[i] = opts.BarData{Value: missing[name].NullPercentage}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Missing values by column (%)"}),
	)
	bar.SetXAxis(names).AddSeries("null %", values)
	return render(bar)
}

type renderable interface {
	Render(w io.Writer) error
}

func render(chart renderable) ([]byte, error) {
	var buf bytes.Buffer
	if err := chart.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
