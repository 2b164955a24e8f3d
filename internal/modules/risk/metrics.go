package risk

import (
	"math"

	"github.com/quantfolio/riskapi/internal/domain"
	"github.com/quantfolio/riskapi/pkg/formulas"
)

// minVaRObservations is the smallest sample the empirical tail estimate will
// accept; below it the result is all zeros.
const minVaRObservations = 10

// DiversificationMetrics measures how far portfolio volatility sits below the
// weighted average of the individual volatilities.
func DiversificationMetrics(table *domain.ReturnTable, weights map[string]float64, opts CovarianceOptions) (*DiversificationResult, error) {
	opts = opts.withDefaults()

	assets, w, err := alignWeights(table, weights)
	if err != nil {
		return nil, err
	}

	sub := table.Select(assets)
	cov := opts.estimate(sub)

	n := len(assets)
	weightedAvgVol := 0.0
	for i := 0; i < n; i++ {
		weightedAvgVol += w[i] * math.Sqrt(math.Max(cov[i][i], 0))
	}

	portfolioVol := math.Sqrt(math.Max(quadraticForm(w, cov), 0))

	divRatio := 1.0
	if portfolioVol > 0 {
		divRatio = weightedAvgVol / portfolioVol
	}
	benefitPct := 0.0
	if weightedAvgVol > 0 {
		benefitPct = (1 - portfolioVol/weightedAvgVol) * 100
	}

	// Weighted average pairwise correlation over the upper triangle.
	avgCorr := 1.0
	if n > 1 {
		weightedCorr := 0.0
		totalWeight := 0.0
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				pairWeight := w[i] * w[j]
				corr := pairwiseCorrelation(sub.Data[assets[i]], sub.Data[assets[j]])
				weightedCorr += pairWeight * corr
				totalWeight += pairWeight
			}
		}
		if totalWeight > 0 {
			avgCorr = weightedCorr / totalWeight
		} else {
			avgCorr = 0
		}
	}

	return &DiversificationResult{
		DiversificationRatio:      divRatio,
		DiversificationBenefitPct: benefitPct,
		WeightedAvgCorrelation:    avgCorr,
		PortfolioVolAnnualized:    portfolioVol * annualizationFactor,
		WeightedAvgVolAnnualized:  weightedAvgVol * annualizationFactor,
	}, nil
}

// VaRCVaR computes the empirical value-at-risk and conditional value-at-risk
// of a periodic return series. Series with fewer than ten observations report
// zeros rather than an unstable tail estimate.
func VaRCVaR(returns []float64, confidence float64, periodsPerYear float64) *VaRCVaRResult {
	clean := dropNaN(returns)
	if len(clean) < minVaRObservations {
		return &VaRCVaRResult{Observations: len(clean)}
	}

	valueAtRisk := formulas.HistoricalVaR(clean, confidence)
	cvar := formulas.HistoricalCVaR(clean, confidence)
	scale := math.Sqrt(periodsPerYear)

	return &VaRCVaRResult{
		VaR:            valueAtRisk,
		CVaR:           cvar,
		VaRAnnualized:  valueAtRisk * scale,
		CVaRAnnualized: cvar * scale,
		Observations:   len(clean),
	}
}

// ComputePerformanceStats summarizes a realized return series: CAGR,
// annualized volatility, Sharpe ratio against the given risk-free rate, max
// drawdown and total return.
func ComputePerformanceStats(returns []float64, periodsPerYear float64, riskFreeRate float64) *PerformanceStats {
	clean := dropNaN(returns)
	if len(clean) < 2 {
		return &PerformanceStats{}
	}

	cagr := formulas.CompoundAnnualGrowthRate(clean, periodsPerYear)
	volatility := formulas.AnnualizedVolatility(clean, periodsPerYear)

	sharpe := 0.0
	if volatility > 0 {
		sharpe = (cagr - riskFreeRate) / volatility
	}

	return &PerformanceStats{
		CAGR:        cagr,
		Volatility:  volatility,
		Sharpe:      sharpe,
		MaxDrawdown: formulas.MaxDrawdown(clean),
		TotalReturn: formulas.TotalReturn(clean),
	}
}

func dropNaN(data []float64) []float64 {
	out := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
