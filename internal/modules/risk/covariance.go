package risk

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/quantfolio/riskapi/internal/domain"
)

// psdEpsilon is the eigenvalue floor used when repairing covariance matrices.
const psdEpsilon = 1e-10

// ShrinkTarget selects the target matrix for shrinkage estimation.
type ShrinkTarget string

const (
	ShrinkTargetDiagonal ShrinkTarget = "diagonal"
	ShrinkTargetIdentity ShrinkTarget = "identity"
)

// SimpleCovariance computes the sample covariance matrix of the table's
// columns. Each pair uses the periods where both assets have observations;
// pairs with fewer than two common observations get a zero entry.
func SimpleCovariance(table *domain.ReturnTable) [][]float64 {
	n := len(table.Assets)
	cov := newMatrix(n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c := pairwiseCovariance(table.Data[table.Assets[i]], table.Data[table.Assets[j]])
			cov[i][j] = c
			cov[j][i] = c
		}
	}
	return cov
}

// EWMACovariance computes an exponentially weighted covariance matrix. The
// weight for observation i (0 = oldest) is (1-decay)*decay^i, reversed so the
// newest observation carries the largest weight, then renormalized to sum 1.
// With fewer than minPeriods observations it falls back to SimpleCovariance.
func EWMACovariance(table *domain.ReturnTable, decay float64, minPeriods int) [][]float64 {
	nObs := table.NumPeriods()
	if nObs < minPeriods {
		return SimpleCovariance(table)
	}

	weights := make([]float64, nObs)
	for i := range weights {
		weights[i] = (1 - decay) * math.Pow(decay, float64(i))
	}
	floats.Reverse(weights)
	floats.Scale(1/floats.Sum(weights), weights)

	// Mean-center each column; gaps contribute zero after centering.
	n := len(table.Assets)
	centered := make([][]float64, n)
	for a, asset := range table.Assets {
		col := table.Data[asset]
		mean := meanValid(col)
		c := make([]float64, nObs)
		for t, v := range col {
			if !math.IsNaN(v) {
				c[t] = v - mean
			}
		}
		centered[a] = c
	}

	cov := newMatrix(n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s := 0.0
			for t := 0; t < nObs; t++ {
				s += weights[t] * centered[i][t] * centered[j][t]
			}
			cov[i][j] = s
			cov[j][i] = s
		}
	}
	return cov
}

// ShrinkageCovariance blends the EWMA covariance toward a structured target:
// (1-alpha)*EWMA + alpha*target. The diagonal target keeps the EWMA variances
// and zeroes covariances; the identity target is the average EWMA variance on
// the diagonal. Alpha is clamped to [0, 1].
func ShrinkageCovariance(table *domain.ReturnTable, decay float64, minPeriods int, target ShrinkTarget, alpha float64) [][]float64 {
	ewma := EWMACovariance(table, decay, minPeriods)
	n := len(ewma)
	if n == 0 {
		return ewma
	}
	alpha = math.Max(0, math.Min(1, alpha))

	tgt := newMatrix(n)
	switch target {
	case ShrinkTargetIdentity:
		avgVar := 0.0
		for i := 0; i < n; i++ {
			avgVar += ewma[i][i]
		}
		avgVar /= float64(n)
		for i := 0; i < n; i++ {
			tgt[i][i] = avgVar
		}
	default: // diagonal
		for i := 0; i < n; i++ {
			tgt[i][i] = ewma[i][i]
		}
	}

	out := newMatrix(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out[i][j] = (1-alpha)*ewma[i][j] + alpha*tgt[i][j]
		}
	}
	return out
}

func newMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	return m
}

func meanValid(col []float64) float64 {
	sum := 0.0
	count := 0
	for _, v := range col {
		if !math.IsNaN(v) {
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func pairwiseCovariance(x, y []float64) float64 {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for k := range x {
		if !math.IsNaN(x[k]) && !math.IsNaN(y[k]) {
			xs = append(xs, x[k])
			ys = append(ys, y[k])
		}
	}
	if len(xs) < 2 {
		return 0
	}
	return stat.Covariance(xs, ys, nil)
}

func pairwiseCorrelation(x, y []float64) float64 {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for k := range x {
		if !math.IsNaN(x[k]) && !math.IsNaN(y[k]) {
			xs = append(xs, x[k])
			ys = append(ys, y[k])
		}
	}
	if len(xs) < 2 {
		return 0
	}
	return stat.Correlation(xs, ys, nil)
}
