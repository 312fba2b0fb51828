package stats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/chronicle-lab/tsreport/internal/dataset"
	"github.com/chronicle-lab/tsreport/internal/merge"
	"github.com/chronicle-lab/tsreport/internal/models"
)

// Columns with standard deviation below this are constant for correlation
// purposes; including them would divide by ~zero.
const constantStdEpsilon = 1e-10

// Descriptive computes the full single-pass statistics for one numeric
// column, quantiles and IQR outlier census included. Returns nil when the
// column has no finite values.
func Descriptive(col *dataset.Column) *models.ColumnStats {
	values := col.FiniteValues()
	if len(values) == 0 {
		return nil
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	out := &models.ColumnStats{
		Count:  len(values),
		Mean:   models.Finite(stat.Mean(values, nil)),
		Min:    models.Finite(sorted[0]),
		Max:    models.Finite(sorted[len(sorted)-1]),
		Median: models.Finite(stat.Quantile(0.5, stat.Empirical, sorted, nil)),
		Q1:     models.Finite(stat.Quantile(0.25, stat.Empirical, sorted, nil)),
		Q3:     models.Finite(stat.Quantile(0.75, stat.Empirical, sorted, nil)),
	}
	if len(values) > 1 {
		out.Std = models.Finite(stat.StdDev(values, nil))
	}
	if len(values) > 2 {
		out.Skewness = models.Finite(stat.Skew(values, nil))
	}
	if len(values) > 3 {
		out.Kurtosis = models.Finite(stat.ExKurtosis(values, nil))
	}
	out.Outliers = outlierCensus(sorted, out.Q1, out.Q3)
	return out
}

// outlierCensus counts values beyond 1.5 IQR of the quartiles.
func outlierCensus(sorted []float64, q1, q3 *float64) *models.OutlierStats {
	if q1 == nil || q3 == nil || len(sorted) == 0 {
		return nil
	}
	iqr := *q3 - *q1
	lower := *q1 - 1.5*iqr
	upper := *q3 + 1.5*iqr

	count := 0
	for _, v := range sorted {
		if v < lower || v > upper {
			count++
		}
	}
	return &models.OutlierStats{
		Count:      count,
		Percentage: 100 * float64(count) / float64(len(sorted)),
		LowerBound: models.Finite(lower),
		UpperBound: models.Finite(upper),
	}
}

// Partial builds the mergeable accumulator for one column of one chunk.
func Partial(col *dataset.Column) merge.ColumnAccumulator {
	return merge.NewColumnAccumulator(col.FiniteValues())
}

// MissingValues runs the per-column null census over every column of the
// dataset, numeric or not.
func MissingValues(ds *dataset.Dataset) map[string]models.MissingStats {
	out := make(map[string]models.MissingStats, len(ds.ColumnNames()))
	rows := ds.Rows()
	for _, name := range ds.ColumnNames() {
		col, _ := ds.Column(name)
		nonNull := col.NonNullCount()
		ms := models.MissingStats{
			TotalCount:   rows,
			NullCount:    rows - nonNull,
			NonNullCount: nonNull,
		}
		if rows > 0 {
			ms.NullPercentage = 100 * float64(ms.NullCount) / float64(rows)
		}
		out[name] = ms
	}
	return out
}

// CorrelationMatrix computes pairwise Pearson correlations over the numeric
// columns. Constant columns and columns with fewer than two valid values
// are excluded up front; a pair correlation uses only rows valid in both
// columns. Undefined cells degrade to 0 with a warning rather than NaN.
func CorrelationMatrix(ds *dataset.Dataset) (*models.CorrelationResult, []string) {
	var warnings []string
	var included []*dataset.Column
	var excluded []string

	for _, name := range ds.NumericColumnNames() {
		col, _ := ds.Column(name)
		values := col.FiniteValues()
		switch {
		case len(values) < 2:
			excluded = append(excluded, name)
			warnings = append(warnings, fmt.Sprintf("column %s excluded from correlation: fewer than 2 valid values", name))
		case stat.StdDev(values, nil) < constantStdEpsilon:
			excluded = append(excluded, name)
			warnings = append(warnings, fmt.Sprintf("column %s excluded from correlation: constant values", name))
		default:
			included = append(included, col)
		}
	}
	if len(included) < 2 {
		return nil, warnings
	}

	names := make([]string, len(included))
	for i, col := range included {
		names[i] = col.Name
	}

	matrix := make(map[string]map[string]float64, len(included))
	for _, name := range names {
		matrix[name] = make(map[string]float64, len(included))
	}

	for i, a := range included {
		matrix[a.Name][a.Name] = 1
		for j := i + 1; j < len(included); j++ {
			b := included[j]
			r, ok := pairCorrelation(a, b)
			if !ok {
				warnings = append(warnings, fmt.Sprintf("correlation %s vs %s undefined, reported as 0", a.Name, b.Name))
				r = 0
			}
			matrix[a.Name][b.Name] = r
			matrix[b.Name][a.Name] = r
		}
	}

	return &models.CorrelationResult{
		Columns:    names,
		Matrix:     matrix,
		SampleSize: ds.Rows(),
		Excluded:   excluded,
	}, warnings
}

// pairCorrelation is Pearson correlation over the rows finite in both
// columns. ok is false when the restricted pair is degenerate.
func pairCorrelation(a, b *dataset.Column) (float64, bool) {
	n := a.Len()
	if b.Len() < n {
		n = b.Len()
	}
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if !a.Valid[i] || !b.Valid[i] {
			continue
		}
		x, y := a.Floats[i], b.Floats[i]
		if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	if len(xs) < 2 {
		return 0, false
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}
