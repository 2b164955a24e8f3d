package risk

import (
	"fmt"
	"math"

	"github.com/quantfolio/riskapi/internal/domain"
	"github.com/quantfolio/riskapi/pkg/formulas"
)

// SegmentOptions configures the tiered tracking-error calculation. The tier
// mapping assigns each asset a bucket label; STABILITY and DIVERSIFIED assets
// form the stability segment, everything else (including unmapped assets)
// counts as growth.
type SegmentOptions struct {
	TierMapping         map[string]string
	GrowthBenchmark     string
	StabilityBenchmark  string
	GrowthAllocation    float64
	StabilityAllocation float64
}

// DefaultSegmentOptions mirrors the standard 60/40 growth/stability split
// benchmarked against the global equity and aggregate bond series.
func DefaultSegmentOptions() SegmentOptions {
	return SegmentOptions{
		GrowthBenchmark:     "GLOBAL",
		StabilityBenchmark:  "GLOBAL AGGREGATE",
		GrowthAllocation:    0.60,
		StabilityAllocation: 0.40,
	}
}

func (o SegmentOptions) withDefaults() SegmentOptions {
	def := DefaultSegmentOptions()
	if o.GrowthBenchmark == "" {
		o.GrowthBenchmark = def.GrowthBenchmark
	}
	if o.StabilityBenchmark == "" {
		o.StabilityBenchmark = def.StabilityBenchmark
	}
	if o.GrowthAllocation <= 0 && o.StabilityAllocation <= 0 {
		o.GrowthAllocation = def.GrowthAllocation
		o.StabilityAllocation = def.StabilityAllocation
	}
	return o
}

func isStabilityTier(bucket string) bool {
	return bucket == domain.BucketStability || bucket == domain.BucketDiversified
}

// SegmentTrackingError splits the portfolio into growth and stability
// segments, tracks each against its own benchmark series, and compares the
// allocation-weighted segment errors with the error of the full portfolio
// against the blended benchmark. The difference is the diversification
// benefit of managing the segments jointly; it can be negative.
func SegmentTrackingError(table *domain.ReturnTable, weights map[string]float64, opts SegmentOptions) (*SegmentTrackingErrorResult, error) {
	opts = opts.withDefaults()

	growthBench := table.Column(opts.GrowthBenchmark)
	if growthBench == nil {
		return nil, fmt.Errorf("growth benchmark %q: %w", opts.GrowthBenchmark, ErrNoOverlap)
	}
	stabilityBench := table.Column(opts.StabilityBenchmark)
	if stabilityBench == nil {
		return nil, fmt.Errorf("stability benchmark %q: %w", opts.StabilityBenchmark, ErrNoOverlap)
	}

	growth := make(map[string]float64)
	stability := make(map[string]float64)
	for _, a := range table.Assets {
		w, ok := weights[a]
		if !ok {
			continue
		}
		if isStabilityTier(opts.TierMapping[a]) {
			stability[a] = w
		} else {
			growth[a] = w
		}
	}
	if len(growth)+len(stability) == 0 {
		return nil, ErrNoOverlap
	}

	growthWeight := sumWeights(growth)
	stabilityWeight := sumWeights(stability)
	if growthWeight+stabilityWeight <= 0 {
		return nil, ErrInvalidWeights
	}

	growthTE := segmentTE(table, growth, growthBench)
	stabilityTE := segmentTE(table, stability, stabilityBench)

	// Full portfolio against the allocation-blended benchmark.
	portNorm, _ := domain.NormalizeWeights(mergeWeights(growth, stability))
	portSeries := table.PortfolioReturns(portNorm)
	blended := make([]float64, table.NumPeriods())
	for t := range blended {
		blended[t] = opts.GrowthAllocation*nanToZero(growthBench[t]) +
			opts.StabilityAllocation*nanToZero(stabilityBench[t])
	}
	totalTE := trackingErrorOfSeries(portSeries, blended)

	weightedAvgTE := opts.GrowthAllocation*growthTE + opts.StabilityAllocation*stabilityTE

	return &SegmentTrackingErrorResult{
		TotalTrackingError:     totalTE,
		GrowthTrackingError:    growthTE,
		StabilityTrackingError: stabilityTE,
		DiversificationBenefit: weightedAvgTE - totalTE,
		GrowthAssetsCount:      len(growth),
		StabilityAssetsCount:   len(stability),
		GrowthWeight:           growthWeight / (growthWeight + stabilityWeight),
		StabilityWeight:        stabilityWeight / (growthWeight + stabilityWeight),
	}, nil
}

// segmentTE computes the realized tracking error of a segment's normalized
// return series against a benchmark column. Empty segments track perfectly.
func segmentTE(table *domain.ReturnTable, segment map[string]float64, benchmark []float64) float64 {
	norm, ok := domain.NormalizeWeights(segment)
	if !ok {
		return 0
	}
	series := table.PortfolioReturns(norm)
	return trackingErrorOfSeries(series, benchmark)
}

// trackingErrorOfSeries is the annualized standard deviation of the active
// return series, skipping periods where the benchmark is unobserved.
func trackingErrorOfSeries(series, benchmark []float64) float64 {
	var active []float64
	for t := range series {
		b := benchmark[t]
		if isNaN(b) {
			continue
		}
		active = append(active, series[t]-b)
	}
	if len(active) < 2 {
		return 0
	}
	return formulas.StdDev(active) * annualizationFactor
}

func sumWeights(m map[string]float64) float64 {
	total := 0.0
	for _, w := range m {
		total += w
	}
	return total
}

func isNaN(v float64) bool {
	return math.IsNaN(v)
}

func nanToZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func mergeWeights(a, b map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] += v
	}
	return out
}
