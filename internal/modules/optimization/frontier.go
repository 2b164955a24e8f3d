package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/quantfolio/riskapi/internal/domain"
)

// Lambda sweep range for the frontier: low risk aversion (return seeking) to
// high (variance minimizing).
const (
	lambdaMin = 0.1
	lambdaMax = 200.0
)

// FrontierOptions configures one frontier computation.
type FrontierOptions struct {
	Mode         Mode
	CapsTemplate CapsTemplate
	CustomAssets []string // >= 2 valid names override Mode
	NPoints      int
	Universe     UniverseConfig
	Log          zerolog.Logger
}

func (o FrontierOptions) withDefaults() FrontierOptions {
	if o.Mode == "" {
		o.Mode = ModeUnconstrained
	}
	if o.CapsTemplate == "" {
		o.CapsTemplate = CapsStandard
	}
	if o.NPoints < 2 {
		o.NPoints = 30
	}
	if o.Universe.Core == nil && o.Universe.Private == nil && o.Universe.Special == nil {
		o.Universe = DefaultUniverseConfig()
	}
	return o
}

// ComputeEfficientFrontier sweeps risk aversion geometrically over
// [lambdaMin, lambdaMax] and solves the constrained mean-variance problem at
// each point, warm-starting from the previous solution. Points that fail to
// converge are dropped. A universe below two assets yields a structured error
// result rather than a Go error.
func ComputeEfficientFrontier(cma []domain.AssetAssumption, correlation *domain.NamedMatrix, opts FrontierOptions) *FrontierResult {
	opts = opts.withDefaults()

	var universe []domain.AssetAssumption
	if len(opts.CustomAssets) >= 2 {
		universe = SelectAssets(cma, opts.CustomAssets)
	} else {
		universe = BuildUniverse(opts.Mode, cma, opts.Universe)
	}

	if len(universe) < 2 {
		return &FrontierResult{
			Risks:        []float64{},
			Returns:      []float64{},
			Weights:      []map[string]float64{},
			Assets:       []string{},
			Mode:         opts.Mode,
			CapsTemplate: opts.CapsTemplate,
			Err:          "Need at least 2 assets",
		}
	}

	mu, sigma, names := MeanCovFromAssets(universe, correlation)

	bounds := CombineBounds(
		CapsFromTemplate(universe, opts.CapsTemplate),
		SpecialCaps(universe, opts.Universe),
	)
	buckets := BuildBucketEnv(universe)

	solver := NewQPSolver(mu, sigma, bounds, buckets, opts.Log)

	result := &FrontierResult{
		Assets:       names,
		Mode:         opts.Mode,
		CapsTemplate: opts.CapsTemplate,
	}

	ratio := math.Pow(lambdaMax/lambdaMin, 1/float64(opts.NPoints-1))
	lambda := lambdaMin
	var warmStart []float64

	for p := 0; p < opts.NPoints; p++ {
		weights, ok := solver.Solve(lambda, warmStart)
		lambda *= ratio
		if !ok {
			continue
		}
		warmStart = weights

		ret, risk := solver.PortfolioStats(weights)
		result.Returns = append(result.Returns, ret)
		result.Risks = append(result.Risks, risk)
		result.Weights = append(result.Weights, weightMap(names, weights))
	}
	result.NPortfolios = len(result.Risks)

	opts.Log.Debug().
		Int("requested", opts.NPoints).
		Int("converged", result.NPortfolios).
		Str("mode", string(opts.Mode)).
		Msg("Frontier sweep complete")

	return result
}

// FindOptimalPortfolio picks one frontier point. With a target return it
// takes the minimum-risk point reaching the target, or the maximum-return
// point when nothing reaches it. With a target risk it takes the
// maximum-return point within budget, or the minimum-risk point when nothing
// fits. With neither it maximizes the Sharpe ratio.
func FindOptimalPortfolio(frontier *FrontierResult, targetReturn, targetRisk *float64, riskFreeRate float64) (*OptimalPortfolio, error) {
	n := len(frontier.Risks)
	if n == 0 {
		return nil, ErrEmptyFrontier
	}

	sharpes := make([]float64, n)
	for i := 0; i < n; i++ {
		sharpes[i] = (frontier.Returns[i] - riskFreeRate) / math.Max(frontier.Risks[i], 1e-10)
	}

	var idx int
	var method string

	switch {
	case targetReturn != nil:
		method = fmt.Sprintf("target_return=%v", *targetReturn)
		idx = -1
		for i := 0; i < n; i++ {
			if frontier.Returns[i] >= *targetReturn {
				if idx == -1 || frontier.Risks[i] < frontier.Risks[idx] {
					idx = i
				}
			}
		}
		if idx == -1 {
			// Unreachable target: settle for the highest return.
			idx = argMax(frontier.Returns)
		}

	case targetRisk != nil:
		method = fmt.Sprintf("target_risk=%v", *targetRisk)
		idx = -1
		for i := 0; i < n; i++ {
			if frontier.Risks[i] <= *targetRisk {
				if idx == -1 || frontier.Returns[i] > frontier.Returns[idx] {
					idx = i
				}
			}
		}
		if idx == -1 {
			idx = argMin(frontier.Risks)
		}

	default:
		method = "max_sharpe"
		idx = argMax(sharpes)
	}

	return &OptimalPortfolio{
		Index:           idx,
		Return:          frontier.Returns[idx],
		Risk:            frontier.Risks[idx],
		SharpeRatio:     sharpes[idx],
		Weights:         frontier.Weights[idx],
		SelectionMethod: method,
	}, nil
}

func weightMap(names []string, weights []float64) map[string]float64 {
	m := make(map[string]float64, len(names))
	for i, name := range names {
		m[name] = weights[i]
	}
	return m
}

func argMax(vals []float64) int {
	best := 0
	for i, v := range vals {
		if v > vals[best] {
			best = i
		}
	}
	return best
}

func argMin(vals []float64) int {
	best := 0
	for i, v := range vals {
		if v < vals[best] {
			best = i
		}
	}
	return best
}
