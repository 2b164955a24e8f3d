package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Variance(data, nil)
}

// Correlation calculates the Pearson correlation coefficient between two datasets
func Correlation(x, y []float64) float64 {
	if len(x) == 0 || len(y) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Correlation(x, y, nil)
}

// Covariance calculates the covariance between two datasets
func Covariance(x, y []float64) float64 {
	if len(x) == 0 || len(y) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// AnnualizedVolatility scales the standard deviation of periodic returns by
// the square root of the number of periods per year.
func AnnualizedVolatility(returns []float64, periodsPerYear float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	return StdDev(returns) * math.Sqrt(periodsPerYear)
}

// TotalReturn compounds a series of periodic returns into a cumulative return.
func TotalReturn(returns []float64) float64 {
	cumulative := 1.0
	for _, r := range returns {
		cumulative *= 1 + r
	}
	return cumulative - 1
}

// CompoundAnnualGrowthRate annualizes the compound growth of a return series.
//
// Formula: ((1+r1)*(1+r2)*...*(1+rN))^(periodsPerYear/N) - 1
func CompoundAnnualGrowthRate(returns []float64, periodsPerYear float64) float64 {
	n := float64(len(returns))
	if n == 0 {
		return 0
	}
	cumulative := 1.0 + TotalReturn(returns)
	if cumulative <= 0 {
		return -1
	}
	years := n / periodsPerYear
	if years <= 0 {
		return 0
	}
	return math.Pow(cumulative, 1/years) - 1
}

// MaxDrawdown returns the largest peak-to-trough decline of the cumulative
// growth path implied by a return series. The result is <= 0.
func MaxDrawdown(returns []float64) float64 {
	cumulative := 1.0
	peak := 1.0
	worst := 0.0
	for _, r := range returns {
		cumulative *= 1 + r
		if cumulative > peak {
			peak = cumulative
		}
		dd := cumulative/peak - 1
		if dd < worst {
			worst = dd
		}
	}
	return worst
}

// Percentile computes the p-th percentile (0-100) of data using linear
// interpolation between closest ranks.
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
