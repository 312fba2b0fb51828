package merge

import (
	"math"
	"sort"

	"github.com/chronicle-lab/tsreport/internal/models"
)

// ColumnAccumulator carries the five sufficient statistics that merge
// exactly across chunk boundaries. Mean, variance and std derive from them
// at finalisation; quantiles do not survive merging and are reported from a
// sample instead.
type ColumnAccumulator struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	SumSq float64 `json:"sum_sq"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// NewColumnAccumulator folds a slice of finite values into an accumulator.
func NewColumnAccumulator(values []float64) ColumnAccumulator {
	acc := ColumnAccumulator{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, v := range values {
		acc.Count++
		acc.Sum += v
		acc.SumSq += v * v
		if v < acc.Min {
			acc.Min = v
		}
		if v > acc.Max {
			acc.Max = v
		}
	}
	return acc
}

// Merge combines two accumulators. The operation is associative and
// commutative, so chunks can merge in any order.
func (a ColumnAccumulator) Merge(b ColumnAccumulator) ColumnAccumulator {
	if a.Count == 0 {
		return b
	}
	if b.Count == 0 {
		return a
	}
	out := ColumnAccumulator{
		Count: a.Count + b.Count,
		Sum:   a.Sum + b.Sum,
		SumSq: a.SumSq + b.SumSq,
		Min:   math.Min(a.Min, b.Min),
		Max:   math.Max(a.Max, b.Max),
	}
	return out
}

// Mean returns the accumulated mean, or NaN for an empty accumulator.
func (a ColumnAccumulator) Mean() float64 {
	if a.Count == 0 {
		return math.NaN()
	}
	return a.Sum / float64(a.Count)
}

// Std returns the sample standard deviation. Floating-point cancellation
// can push the variance estimate slightly negative, so it is floored at
// zero before the square root.
func (a ColumnAccumulator) Std() float64 {
	if a.Count < 2 {
		return math.NaN()
	}
	variance := (a.SumSq - a.Sum*a.Sum/float64(a.Count)) / float64(a.Count-1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// Finalize renders the accumulator into column statistics. Quantile fields
// stay nil; callers fill them from a sampled pass when available.
func (a ColumnAccumulator) Finalize() models.ColumnStats {
	if a.Count == 0 {
		return models.ColumnStats{}
	}
	stats := models.ColumnStats{
		Count: int(a.Count),
		Mean:  models.Finite(a.Mean()),
		Min:   models.Finite(a.Min),
		Max:   models.Finite(a.Max),
	}
	stats.Std = models.Finite(a.Std())
	return stats
}

// Stats merges per-column accumulators from multiple chunks. Columns absent
// from a partial simply contribute nothing for that chunk.
func Stats(partials []map[string]ColumnAccumulator) map[string]ColumnAccumulator {
	merged := make(map[string]ColumnAccumulator)
	for _, partial := range partials {
		for name, acc := range partial {
			merged[name] = merged[name].Merge(acc)
		}
	}
	return merged
}

// Correlation selects a representative correlation result from chunked
// partials. Correlation matrices have no exact merge, so the first
// non-empty partial is kept and flagged approximate.
func Correlation(partials []*models.CorrelationResult) *models.CorrelationResult {
	for _, p := range partials {
		if p == nil || len(p.Matrix) == 0 {
			continue
		}
		out := *p
		if len(partials) > 1 {
			out.Approximate = true
		}
		return &out
	}
	return nil
}

// TimeSeries concatenates chunked time-series points and restores global
// time order. Chunks are already internally ordered, so this is close to a
// k-way merge in practice.
func TimeSeries(partials [][]models.TimePoint) []models.TimePoint {
	var total int
	for _, p := range partials {
		total += len(p)
	}
	if total == 0 {
		return nil
	}
	merged := make([]models.TimePoint, 0, total)
	for _, p := range partials {
		merged = append(merged, p...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged
}
