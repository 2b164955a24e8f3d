package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/riskapi/internal/domain"
)

func TestContributionsPCTRSumsToOne(t *testing.T) {
	table := makeTable(t, 60, 21, "EQ", "FI", "GOLD")
	weights := map[string]float64{"EQ": 0.5, "FI": 0.3, "GOLD": 0.2}

	result, err := Contributions(table, weights, DefaultCovarianceOptions())
	require.NoError(t, err)

	sum := 0.0
	for _, v := range result.PCTR {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
	assert.Greater(t, result.PortfolioVol, 0.0)
	assert.InDelta(t, result.PortfolioVol*math.Sqrt(12), result.PortfolioVolAnnualized, 1e-12)
}

func TestContributionsEulerIdentity(t *testing.T) {
	table := makeTable(t, 60, 22, "A", "B")
	weights := map[string]float64{"A": 0.7, "B": 0.3}

	result, err := Contributions(table, weights, CovarianceOptions{UseEWMA: false})
	require.NoError(t, err)

	// sum(w_i * MCTR_i) reassembles the portfolio volatility.
	total := 0.0
	for a, w := range result.Weights {
		total += w * result.MCTR[a]
	}
	assert.InDelta(t, result.PortfolioVol, total, 1e-10)
}

func TestContributionsRenormalizesWeights(t *testing.T) {
	table := makeTable(t, 60, 23, "A", "B")

	// Weights sum to 2 and include an unknown asset.
	result, err := Contributions(table, map[string]float64{"A": 1.0, "B": 1.0, "GHOST": 5.0}, DefaultCovarianceOptions())
	require.NoError(t, err)

	assert.InDelta(t, 0.5, result.Weights["A"], 1e-12)
	assert.NotContains(t, result.Weights, "GHOST")
}

func TestContributionsErrors(t *testing.T) {
	table := makeTable(t, 60, 24, "A")

	_, err := Contributions(table, map[string]float64{"UNKNOWN": 1.0}, DefaultCovarianceOptions())
	assert.True(t, errors.Is(err, ErrNoOverlap))

	_, err = Contributions(table, map[string]float64{"A": -1.0}, DefaultCovarianceOptions())
	assert.True(t, errors.Is(err, ErrInvalidWeights))
}

func TestTrackingErrorZeroWhenIdentical(t *testing.T) {
	table := makeTable(t, 60, 25, "A", "B")
	weights := map[string]float64{"A": 0.6, "B": 0.4}

	result, err := TrackingError(table, weights, weights, DefaultCovarianceOptions())
	require.NoError(t, err)

	assert.InDelta(t, 0.0, result.TrackingError, 1e-10)
	for _, contrib := range result.TEContributions {
		assert.Zero(t, contrib)
	}
}

func TestTrackingErrorPositiveForActiveBets(t *testing.T) {
	table := makeTable(t, 60, 26, "A", "B")

	result, err := TrackingError(table,
		map[string]float64{"A": 0.8, "B": 0.2},
		map[string]float64{"A": 0.5, "B": 0.5},
		DefaultCovarianceOptions())
	require.NoError(t, err)

	assert.Greater(t, result.TrackingError, 0.0)
	assert.InDelta(t, 0.3, result.ActiveWeights["A"], 1e-12)
	assert.InDelta(t, -0.3, result.ActiveWeights["B"], 1e-12)

	// Contributions normalize to 1 when TE is positive.
	sum := 0.0
	for _, v := range result.TEContributions {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestTrackingErrorNormalizesEachSide(t *testing.T) {
	table := makeTable(t, 60, 27, "A", "B")

	// Same proportions at different scales: still a perfect track.
	result, err := TrackingError(table,
		map[string]float64{"A": 2.0, "B": 2.0},
		map[string]float64{"A": 0.5, "B": 0.5},
		DefaultCovarianceOptions())
	require.NoError(t, err)

	assert.InDelta(t, 0.0, result.TrackingError, 1e-10)
}

func TestPCTEAbsoluteNormalization(t *testing.T) {
	table := makeTable(t, 60, 28, "A", "B", "C")

	result, err := PCTE(table,
		map[string]float64{"A": 0.6, "B": 0.2, "C": 0.2},
		map[string]float64{"A": 0.2, "B": 0.6, "C": 0.2},
		DefaultCovarianceOptions())
	require.NoError(t, err)

	absSum := 0.0
	for _, v := range result.PCTE {
		absSum += math.Abs(v)
	}
	assert.InDelta(t, 1.0, absSum, 1e-6)
	assert.InDelta(t, result.TrackingErrorMonthly*math.Sqrt(12), result.TrackingError, 1e-10)
}

func TestFactorRiskDecompositionSingleFactor(t *testing.T) {
	betas := &domain.BetaMatrix{
		Securities: []string{"SEC"},
		Factors:    []string{"MKT"},
		Vals:       map[string][]float64{"SEC": {1.0}},
	}
	factorCov := domain.NewNamedMatrix([]string{"MKT"})
	factorCov.Set("MKT", "MKT", 0.04)
	residual := map[string]float64{"SEC": 0.01}

	result := FactorRiskDecomposition(map[string]float64{"SEC": 1.0}, betas, factorCov, residual)

	assert.InDelta(t, math.Sqrt(0.04)*math.Sqrt(12), result.SystematicRisk, 1e-9)
	assert.InDelta(t, math.Sqrt(0.01)*math.Sqrt(12), result.SpecificRisk, 1e-9)
	assert.InDelta(t, math.Sqrt(0.05)*math.Sqrt(12), result.TotalRisk, 1e-9)
	assert.InDelta(t, 80.0, result.SystematicPct, 1e-9)
	assert.InDelta(t, 20.0, result.SpecificPct, 1e-9)
	assert.InDelta(t, 1.0, result.FactorContributions["MKT"], 1e-12)
}

func TestFactorRiskDecompositionTreatsNaNResidualAsZero(t *testing.T) {
	betas := &domain.BetaMatrix{
		Securities: []string{"SEC"},
		Factors:    []string{"MKT"},
		Vals:       map[string][]float64{"SEC": {0.5}},
	}
	factorCov := domain.NewNamedMatrix([]string{"MKT"})
	factorCov.Set("MKT", "MKT", 0.04)

	result := FactorRiskDecomposition(map[string]float64{"SEC": 1.0}, betas, factorCov, map[string]float64{"SEC": math.NaN()})

	assert.InDelta(t, 0.0, result.SpecificRisk, 1e-12)
	assert.InDelta(t, 100.0, result.SystematicPct, 1e-9)
}

func TestFullRiskDecomposition(t *testing.T) {
	betas := &domain.BetaMatrix{
		Securities: []string{"A", "B"},
		Factors:    []string{"MKT", "RATES"},
		Vals: map[string][]float64{
			"A": {1.1, 0.1},
			"B": {0.2, 0.9},
		},
	}
	factorCov := domain.NewNamedMatrix([]string{"MKT", "RATES"})
	factorCov.Set("MKT", "MKT", 0.03)
	factorCov.Set("RATES", "RATES", 0.01)
	factorCov.Set("MKT", "RATES", 0.005)
	factorCov.Set("RATES", "MKT", 0.005)
	residual := map[string]float64{"A": 0.004, "B": 0.002}

	result, err := FullRiskDecomposition(
		map[string]float64{"A": 0.7, "B": 0.3},
		map[string]float64{"A": 0.5, "B": 0.5},
		betas, factorCov, residual)
	require.NoError(t, err)

	for _, leg := range []*RiskDecomposition{result.Portfolio, result.Benchmark, result.Active} {
		assert.InDelta(t, 100.0, leg.SystematicPct+leg.SpecificPct, 1e-9)
	}
	assert.Greater(t, result.Portfolio.TotalRisk, 0.0)
	assert.Greater(t, result.Active.TotalRisk, 0.0)
	assert.Equal(t, result.Active.FactorContributions, result.FactorContributions)
}

func TestFullRiskDecompositionIdenticalSidesHaveNoActiveRisk(t *testing.T) {
	betas := &domain.BetaMatrix{
		Securities: []string{"A"},
		Factors:    []string{"MKT"},
		Vals:       map[string][]float64{"A": {1.0}},
	}
	factorCov := domain.NewNamedMatrix([]string{"MKT"})
	factorCov.Set("MKT", "MKT", 0.04)

	result, err := FullRiskDecomposition(
		map[string]float64{"A": 1.0},
		map[string]float64{"A": 1.0},
		betas, factorCov, map[string]float64{"A": 0.01})
	require.NoError(t, err)

	assert.InDelta(t, 0.0, result.Active.TotalRisk, 1e-6)
}

func TestFullRiskDecompositionRejectsZeroWeights(t *testing.T) {
	betas := &domain.BetaMatrix{Securities: []string{"A"}, Factors: []string{"MKT"}, Vals: map[string][]float64{"A": {1}}}
	factorCov := domain.NewNamedMatrix([]string{"MKT"})

	_, err := FullRiskDecomposition(map[string]float64{"A": 0}, map[string]float64{"A": 1}, betas, factorCov, nil)
	assert.True(t, errors.Is(err, ErrInvalidWeights))
}
