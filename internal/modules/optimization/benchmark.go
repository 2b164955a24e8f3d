package optimization

import (
	"math"
	"strings"

	"github.com/quantfolio/riskapi/internal/domain"
)

// Fallback assumptions for benchmark legs missing from the CMA table.
const (
	defaultEquityReturn      = 0.08
	defaultEquityRisk        = 0.16
	defaultFixedIncomeReturn = 0.04
	defaultFixedIncomeRisk   = 0.05
	defaultBlendCorrelation  = 0.2
)

// BenchmarkOptions configures the two-asset blended benchmark.
type BenchmarkOptions struct {
	EquityType            string
	FixedIncomeType       string
	EquityAllocation      float64
	FixedIncomeAllocation float64
}

// DefaultBenchmarkOptions is the standard 60/40 global blend.
func DefaultBenchmarkOptions() BenchmarkOptions {
	return BenchmarkOptions{
		EquityType:            "GLOBAL",
		FixedIncomeType:       "GLOBAL AGGREGATE",
		EquityAllocation:      0.60,
		FixedIncomeAllocation: 0.40,
	}
}

// CalculateBlendedBenchmark computes the closed-form risk and return of an
// equity / fixed-income blend. Legs missing from the CMA table use default
// assumptions; a missing correlation falls back to 0.2.
func CalculateBlendedBenchmark(cma []domain.AssetAssumption, correlation *domain.NamedMatrix, opts BenchmarkOptions) *BlendedBenchmark {
	returns := make(map[string]float64, len(cma))
	risks := make(map[string]float64, len(cma))
	for _, asset := range cma {
		name := strings.ToUpper(asset.Name)
		returns[name] = asset.Return
		risks[name] = asset.Risk
	}

	eqType := strings.ToUpper(opts.EquityType)
	fiType := strings.ToUpper(opts.FixedIncomeType)

	eqRet := lookupOr(returns, eqType, defaultEquityReturn)
	eqRisk := lookupOr(risks, eqType, defaultEquityRisk)
	fiRet := lookupOr(returns, fiType, defaultFixedIncomeReturn)
	fiRisk := lookupOr(risks, fiType, defaultFixedIncomeRisk)

	corr := defaultBlendCorrelation
	if v, ok := correlation.At(eqType, fiType); ok && !math.IsNaN(v) {
		corr = v
	}

	eqAlloc := opts.EquityAllocation
	fiAlloc := opts.FixedIncomeAllocation

	blendedReturn := eqAlloc*eqRet + fiAlloc*fiRet
	blendedVar := eqAlloc*eqAlloc*eqRisk*eqRisk +
		fiAlloc*fiAlloc*fiRisk*fiRisk +
		2*eqAlloc*fiAlloc*eqRisk*fiRisk*corr

	return &BlendedBenchmark{
		BlendedReturn: blendedReturn,
		BlendedRisk:   math.Sqrt(blendedVar),
		Equity: BenchmarkComponent{
			Type:       eqType,
			Return:     eqRet,
			Risk:       eqRisk,
			Allocation: eqAlloc,
		},
		FixedIncome: BenchmarkComponent{
			Type:       fiType,
			Return:     fiRet,
			Risk:       fiRisk,
			Allocation: fiAlloc,
		},
		Correlation: corr,
	}
}

func lookupOr(m map[string]float64, key string, fallback float64) float64 {
	if v, ok := m[key]; ok && !math.IsNaN(v) {
		return v
	}
	return fallback
}

// DetectInefficiencies normalizes the current and proposed allocations and
// flags every position whose proposed weight deviates from the current book
// or from the benchmark by at least threshold. Deltas are reported in percent
// rounded to one decimal.
func DetectInefficiencies(holdings []domain.Holding, buckets map[string]string, benchmark map[string]float64, threshold float64) []InefficiencyFlag {
	currentTotal, proposedTotal := 0.0, 0.0
	for _, h := range holdings {
		currentTotal += h.Current
		proposedTotal += h.Proposed
	}

	benchUpper := make(map[string]float64, len(benchmark))
	for k, v := range benchmark {
		benchUpper[strings.ToUpper(k)] = v
	}

	flags := []InefficiencyFlag{}
	for _, h := range holdings {
		current := h.Current
		if currentTotal > 0 {
			current /= currentTotal
		}
		proposed := h.Proposed
		if proposedTotal > 0 {
			proposed /= proposedTotal
		}
		bench := benchUpper[strings.ToUpper(h.Asset)]

		deltaCurrent := proposed - current
		deltaBench := proposed - bench

		if math.Abs(deltaCurrent) >= threshold || math.Abs(deltaBench) >= threshold {
			flags = append(flags, InefficiencyFlag{
				Asset:            h.Asset,
				Bucket:           buckets[h.Asset],
				CurrentPct:       roundPct(current),
				ProposedPct:      roundPct(proposed),
				BenchmarkPct:     roundPct(bench),
				VsCurrentDelta:   roundPct(deltaCurrent),
				VsBenchmarkDelta: roundPct(deltaBench),
			})
		}
	}
	return flags
}

func roundPct(v float64) float64 {
	return math.Round(v*1000) / 10
}
