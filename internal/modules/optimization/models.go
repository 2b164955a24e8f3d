package optimization

import "errors"

// ErrEmptyFrontier is returned when portfolio selection runs against a
// frontier with no converged points.
var ErrEmptyFrontier = errors.New("empty frontier")

// Mode selects which asset universe the optimizer runs over.
type Mode string

const (
	ModeCore          Mode = "core"
	ModeCorePrivate   Mode = "core_private"
	ModeUnconstrained Mode = "unconstrained"
)

// CapsTemplate names a per-position ceiling profile.
type CapsTemplate string

const (
	CapsTight    CapsTemplate = "tight"
	CapsLoose    CapsTemplate = "loose"
	CapsStandard CapsTemplate = "std"
)

// FrontierResult is the full efficient frontier: parallel risk/return series
// with one weight map per converged point. Err is set (and the series empty)
// when the universe is too small to optimize.
type FrontierResult struct {
	Risks        []float64            `json:"risks"`
	Returns      []float64            `json:"returns"`
	Weights      []map[string]float64 `json:"weights"`
	Assets       []string             `json:"assets"`
	NPortfolios  int                  `json:"n_portfolios"`
	Mode         Mode                 `json:"mode"`
	CapsTemplate CapsTemplate         `json:"caps_template"`
	Err          string               `json:"error,omitempty"`
}

// OptimalPortfolio is one frontier point picked by target return, target risk
// or maximum Sharpe ratio.
type OptimalPortfolio struct {
	Index           int                `json:"index"`
	Return          float64            `json:"return"`
	Risk            float64            `json:"risk"`
	SharpeRatio     float64            `json:"sharpe_ratio"`
	Weights         map[string]float64 `json:"weights"`
	SelectionMethod string             `json:"selection_method"`
}

// BenchmarkComponent is one leg of the two-asset blended benchmark.
type BenchmarkComponent struct {
	Type       string  `json:"type"`
	Return     float64 `json:"return"`
	Risk       float64 `json:"risk"`
	Allocation float64 `json:"allocation"`
}

// BlendedBenchmark holds the closed-form risk/return of an equity /
// fixed-income blend.
type BlendedBenchmark struct {
	BlendedReturn float64            `json:"blended_return"`
	BlendedRisk   float64            `json:"blended_risk"`
	Equity        BenchmarkComponent `json:"equity"`
	FixedIncome   BenchmarkComponent `json:"fixed_income"`
	Correlation   float64            `json:"correlation"`
}

// InefficiencyFlag marks a position whose proposed allocation deviates from
// the current book or the benchmark by at least the caller's threshold.
// Values are percentages rounded to one decimal.
type InefficiencyFlag struct {
	Asset            string  `json:"asset"`
	Bucket           string  `json:"bucket"`
	CurrentPct       float64 `json:"current_pct"`
	ProposedPct      float64 `json:"proposed_pct"`
	BenchmarkPct     float64 `json:"benchmark_pct"`
	VsCurrentDelta   float64 `json:"vs_current_delta"`
	VsBenchmarkDelta float64 `json:"vs_benchmark_delta"`
}

// BucketConstraint bounds the summed weight of one allocation bucket.
type BucketConstraint struct {
	Indices []int
	Lo      float64
	Hi      float64
}
