package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/riskapi/internal/domain"
)

func TestDiversificationRatioSingleAsset(t *testing.T) {
	table := makeTable(t, 60, 31, "ONLY")

	result, err := DiversificationMetrics(table, map[string]float64{"ONLY": 1.0}, DefaultCovarianceOptions())
	require.NoError(t, err)

	assert.InDelta(t, 1.0, result.DiversificationRatio, 1e-9)
	assert.InDelta(t, 0.0, result.DiversificationBenefitPct, 1e-9)
	assert.InDelta(t, 1.0, result.WeightedAvgCorrelation, 1e-12)
}

func TestDiversificationRatioMultiAsset(t *testing.T) {
	table := makeTable(t, 120, 32, "A", "B", "C")

	result, err := DiversificationMetrics(table, map[string]float64{"A": 0.4, "B": 0.3, "C": 0.3}, DefaultCovarianceOptions())
	require.NoError(t, err)

	// Imperfectly correlated assets always diversify.
	assert.GreaterOrEqual(t, result.DiversificationRatio, 1.0)
	assert.GreaterOrEqual(t, result.DiversificationBenefitPct, 0.0)
	assert.Less(t, result.WeightedAvgCorrelation, 1.0)
}

func TestVaRCVaRInsufficientData(t *testing.T) {
	result := VaRCVaR([]float64{-0.05, 0.02, 0.01}, 0.95, 12)

	assert.Zero(t, result.VaR)
	assert.Zero(t, result.CVaR)
	assert.Zero(t, result.VaRAnnualized)
	assert.Equal(t, 3, result.Observations)
}

func TestVaRCVaRTailOrdering(t *testing.T) {
	returns := []float64{-0.12, -0.08, -0.05, -0.02, -0.01, 0.0, 0.01, 0.02, 0.04, 0.06, 0.08, 0.10}

	result := VaRCVaR(returns, 0.95, 12)

	assert.Less(t, result.VaR, 0.0)
	assert.LessOrEqual(t, result.CVaR, result.VaR)
	assert.InDelta(t, result.VaR*math.Sqrt(12), result.VaRAnnualized, 1e-12)
	assert.InDelta(t, result.CVaR*math.Sqrt(12), result.CVaRAnnualized, 1e-12)
	assert.Equal(t, len(returns), result.Observations)
}

func TestVaRCVaRDropsNaN(t *testing.T) {
	returns := make([]float64, 0, 15)
	for i := 0; i < 12; i++ {
		returns = append(returns, float64(i-6)/100)
	}
	returns = append(returns, math.NaN(), math.NaN())

	result := VaRCVaR(returns, 0.95, 12)
	assert.Equal(t, 12, result.Observations)
}

func TestComputePerformanceStatsConstantSeries(t *testing.T) {
	returns := make([]float64, 24)
	for i := range returns {
		returns[i] = 0.01
	}

	stats := ComputePerformanceStats(returns, 12, 0.03)

	assert.InDelta(t, math.Pow(1.01, 12)-1, stats.CAGR, 1e-9)
	assert.InDelta(t, 0.0, stats.Volatility, 1e-12)
	assert.Zero(t, stats.Sharpe) // undefined at zero vol, reported as 0
	assert.Zero(t, stats.MaxDrawdown)
	assert.InDelta(t, math.Pow(1.01, 24)-1, stats.TotalReturn, 1e-9)
}

func TestComputePerformanceStatsShortSeries(t *testing.T) {
	stats := ComputePerformanceStats([]float64{0.02}, 12, 0.03)
	assert.Equal(t, &PerformanceStats{}, stats)
}

func TestComputePerformanceStatsDrawdown(t *testing.T) {
	returns := []float64{0.10, -0.30, 0.05, 0.05}

	stats := ComputePerformanceStats(returns, 12, 0.0)

	assert.InDelta(t, -0.30, stats.MaxDrawdown, 1e-9)
	assert.Less(t, stats.Sharpe, 0.0)
}

func TestDiversificationMetricsNoOverlap(t *testing.T) {
	table := domain.NewReturnTable([]string{"2024-01"}, []string{"A"}, map[string][]float64{"A": {0.01}})

	_, err := DiversificationMetrics(table, map[string]float64{"B": 1.0}, DefaultCovarianceOptions())
	assert.ErrorIs(t, err, ErrNoOverlap)
}
