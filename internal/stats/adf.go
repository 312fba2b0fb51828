package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/chronicle-lab/tsreport/internal/models"
)

// adfMinObservations is the floor below which the regression is degenerate.
const adfMinObservations = 4

// MacKinnon finite-sample response-surface coefficients for the
// constant-only regression, one unit root. cv = b0 + b1/T + b2/T^2.
var macKinnonCoeffs = map[string][3]float64{
	"1%":  {-3.43035, -6.5393, -16.786},
	"5%":  {-2.86154, -2.8903, -4.234},
	"10%": {-2.56677, -1.5384, -2.809},
}

// ADFTest runs an Augmented Dickey-Fuller unit-root test with a constant
// term and AIC-selected lag order. Degenerate inputs produce a result with
// null numerics and an explanatory interpretation instead of an error.
func ADFTest(series []float64, significance float64) models.ADFResult {
	if significance <= 0 || significance >= 1 {
		significance = 0.05
	}
	values := finiteOnly(series)
	n := len(values)
	if n < adfMinObservations {
		return models.ADFResult{
			Significance:   significance,
			Interpretation: fmt.Sprintf("insufficient data for stationarity test (%d observations, need at least %d)", n, adfMinObservations),
		}
	}
	if isConstant(values) {
		return models.ADFResult{
			Significance:   significance,
			Interpretation: "series is constant, stationarity test not applicable",
		}
	}

	maxLag := int(math.Floor(12 * math.Pow(float64(n)/100, 0.25)))
	// Leave enough rows for the regression after differencing and lagging.
	if ceiling := (n - 2) / 2; maxLag > ceiling {
		maxLag = ceiling
	}
	if maxLag < 0 {
		maxLag = 0
	}

	lag := selectLagAIC(values, maxLag)
	statistic, ok := adfStatistic(values, lag)
	if !ok {
		return models.ADFResult{
			Significance:   significance,
			Interpretation: "stationarity regression is singular, test not applicable",
		}
	}

	effectiveN := n - 1 - lag
	critical := criticalValues(effectiveN)
	pValue := interpolatePValue(statistic, critical)
	stationary := pValue < significance

	verdict := "non-stationary"
	if stationary {
		verdict = "stationary"
	}
	return models.ADFResult{
		Statistic:      models.Finite(statistic),
		PValue:         models.Finite(pValue),
		CriticalValues: critical,
		IsStationary:   &stationary,
		Lags:           lag,
		Significance:   significance,
		Interpretation: fmt.Sprintf("series is %s at the %.0f%% significance level (p=%.4f)", verdict, significance*100, pValue),
	}
}

func finiteOnly(series []float64) []float64 {
	out := make([]float64, 0, len(series))
	for _, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func isConstant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

// adfRegression fits diff(y)_t on [1, y_{t-1}, diff(y)_{t-1..lag}] and
// returns the coefficient vector, residual sum of squares and the standard
// error of the y_{t-1} coefficient.
func adfRegression(values []float64, lag, startRow int) (tstat, rss float64, nobs int, ok bool) {
	diffs := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		diffs[i-1] = values[i] - values[i-1]
	}

	// Row t of the design explains diffs[t]; startRow lets lag selection
	// hold the estimation sample fixed across candidate lag orders.
	if startRow < lag {
		startRow = lag
	}
	rows := len(diffs) - startRow
	cols := 2 + lag
	if rows <= cols {
		return 0, 0, 0, false
	}

	x := mat.NewDense(rows, cols, nil)
	y := mat.NewVecDense(rows, nil)
	for r := 0; r < rows; r++ {
		t := startRow + r
		x.Set(r, 0, 1)
		x.Set(r, 1, values[t])
		for l := 1; l <= lag; l++ {
			x.Set(r, 2+l-1, diffs[t-l])
		}
		y.SetVec(r, diffs[t])
	}

	var qr mat.QR
	qr.Factorize(x)
	beta := mat.NewVecDense(cols, nil)
	if err := qr.SolveVecTo(beta, false, y); err != nil {
		return 0, 0, 0, false
	}

	resid := mat.NewVecDense(rows, nil)
	resid.MulVec(x, beta)
	resid.SubVec(y, resid)
	rss = mat.Dot(resid, resid)

	sigma2 := rss / float64(rows-cols)

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return 0, 0, 0, false
	}
	se := math.Sqrt(sigma2 * xtxInv.At(1, 1))
	if se == 0 || math.IsNaN(se) {
		return 0, 0, 0, false
	}
	return beta.AtVec(1) / se, rss, rows, true
}

// selectLagAIC picks the lag order minimising AIC over 0..maxLag, holding
// the estimation sample fixed at the one implied by maxLag.
func selectLagAIC(values []float64, maxLag int) int {
	best, bestAIC := 0, math.Inf(1)
	for lag := 0; lag <= maxLag; lag++ {
		_, rss, nobs, ok := adfRegression(values, lag, maxLag)
		if !ok || rss <= 0 || nobs == 0 {
			continue
		}
		k := 2 + lag
		aic := float64(nobs)*math.Log(rss/float64(nobs)) + 2*float64(k)
		if aic < bestAIC {
			best, bestAIC = lag, aic
		}
	}
	return best
}

func adfStatistic(values []float64, lag int) (float64, bool) {
	tstat, _, _, ok := adfRegression(values, lag, lag)
	if !ok || math.IsNaN(tstat) || math.IsInf(tstat, 0) {
		return 0, false
	}
	return tstat, true
}

func criticalValues(n int) map[string]float64 {
	if n < 1 {
		n = 1
	}
	t := float64(n)
	out := make(map[string]float64, len(macKinnonCoeffs))
	for level, b := range macKinnonCoeffs {
		out[level] = b[0] + b[1]/t + b[2]/(t*t)
	}
	return out
}

// interpolatePValue maps the test statistic to an approximate p-value by
// piecewise-linear interpolation between the critical-value anchors, clamped
// to (0.001, 0.99) at the extremes.
func interpolatePValue(statistic float64, critical map[string]float64) float64 {
	anchors := []struct {
		cv float64
		p  float64
	}{
		{critical["1%"], 0.01},
		{critical["5%"], 0.05},
		{critical["10%"], 0.10},
	}

	if statistic <= anchors[0].cv {
		return 0.001
	}
	if statistic >= anchors[len(anchors)-1].cv {
		// Extrapolate toward 1 between the 10% critical value and zero,
		// where the statistic carries no unit-root evidence.
		upper := anchors[len(anchors)-1]
		span := 0 - upper.cv
		if span <= 0 || statistic >= 0 {
			return 0.99
		}
		p := upper.p + (statistic-upper.cv)/span*(0.99-upper.p)
		return math.Min(p, 0.99)
	}

	for i := 1; i < len(anchors); i++ {
		lo, hi := anchors[i-1], anchors[i]
		if statistic <= hi.cv {
			frac := (statistic - lo.cv) / (hi.cv - lo.cv)
			return lo.p + frac*(hi.p-lo.p)
		}
	}
	return 0.99
}
