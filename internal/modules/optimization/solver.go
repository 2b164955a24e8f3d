package optimization

import (
	"math"
	"strings"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/optimize"

	"github.com/quantfolio/riskapi/internal/domain"
	"github.com/quantfolio/riskapi/pkg/formulas"
)

// penaltyWeight scales the quadratic penalties standing in for the equality
// and bucket constraints.
const penaltyWeight = 1000.0

// MeanCovFromAssets builds the expected-return vector and the PSD-repaired
// covariance matrix Sigma = outer(risk, risk) * corr for a universe. Missing
// correlation pairs are treated as zero.
func MeanCovFromAssets(assets []domain.AssetAssumption, correlation *domain.NamedMatrix) (mu []float64, sigma [][]float64, names []string) {
	n := len(assets)
	mu = make([]float64, n)
	vols := make([]float64, n)
	names = make([]string, n)
	for i, asset := range assets {
		names[i] = strings.ToUpper(asset.Name)
		mu[i] = asset.Return
		vols[i] = asset.Risk
	}

	corr := correlation.Submatrix(names, 0)
	sigma = make([][]float64, n)
	for i := range sigma {
		sigma[i] = make([]float64, n)
		for j := range sigma[i] {
			sigma[i][j] = vols[i] * vols[j] * corr[i][j]
		}
	}
	sigma = formulas.RepairPSD(sigma, 1e-10)
	return mu, sigma, names
}

// QPSolver solves the mean-variance problem
//
//	minimize  lambda * w'Sigma*w - mu'w
//	subject to sum(w) = 1, per-asset bounds, bucket sum bounds
//
// via a penalty formulation: the equality and bucket constraints become
// quadratic penalties, box bounds are enforced by projection, and the smooth
// objective is handed to gonum's BFGS with a Nelder-Mead fallback.
type QPSolver struct {
	mu      []float64
	sigma   [][]float64
	bounds  [][2]float64
	buckets []BucketConstraint
	log     zerolog.Logger
}

// NewQPSolver creates a solver for one universe.
func NewQPSolver(mu []float64, sigma [][]float64, bounds [][2]float64, buckets []BucketConstraint, log zerolog.Logger) *QPSolver {
	return &QPSolver{
		mu:      mu,
		sigma:   sigma,
		bounds:  bounds,
		buckets: buckets,
		log:     log.With().Str("component", "qp_solver").Logger(),
	}
}

// Solve minimizes for one risk-aversion lambda. warmStart (clipped into
// bounds) seeds the search when non-nil, otherwise equal weights. The boolean
// reports convergence; non-converged points are meant to be dropped silently
// by the frontier sweep.
func (s *QPSolver) Solve(lambda float64, warmStart []float64) ([]float64, bool) {
	n := len(s.mu)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			xProj := s.projectToBounds(x)

			var portfolioReturn, variance float64
			for i := 0; i < n; i++ {
				portfolioReturn += s.mu[i] * xProj[i]
				for j := 0; j < n; j++ {
					variance += xProj[i] * xProj[j] * s.sigma[i][j]
				}
			}

			obj := lambda*variance - portfolioReturn

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += xProj[i]
			}
			obj += penaltyWeight * (sum - 1.0) * (sum - 1.0)
			obj += s.bucketPenalty(xProj)

			return obj
		},
		Grad: func(grad, x []float64) {
			xProj := s.projectToBounds(x)

			for i := 0; i < n; i++ {
				grad[i] = -s.mu[i]
				for j := 0; j < n; j++ {
					grad[i] += 2 * lambda * s.sigma[i][j] * xProj[j]
				}
			}

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += xProj[i]
			}
			for i := 0; i < n; i++ {
				grad[i] += 2 * penaltyWeight * (sum - 1.0)
			}

			s.addBucketPenaltyGradient(grad, xProj)
		},
	}

	initial := make([]float64, n)
	if warmStart != nil && len(warmStart) == n {
		copy(initial, warmStart)
		initial = s.projectToBounds(initial)
	} else {
		for i := range initial {
			initial[i] = 1.0 / float64(n)
		}
	}

	successStatuses := map[optimize.Status]bool{
		optimize.Success:             true,
		optimize.GradientThreshold:   true,
		optimize.FunctionConvergence: true,
	}

	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.BFGS{})
	if err != nil || !successStatuses[result.Status] {
		result, err = optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
		if err != nil {
			s.log.Debug().Err(err).Float64("lambda", lambda).Msg("Solve failed")
			return nil, false
		}
		if !successStatuses[result.Status] {
			s.log.Debug().
				Float64("lambda", lambda).
				Str("status", result.Status.String()).
				Msg("Solve did not converge")
			return nil, false
		}
	}

	// Project the final point into bounds, clamp tiny negatives and
	// renormalize to an exact budget.
	weights := s.projectToBounds(result.X)
	sum := 0.0
	for i := range weights {
		weights[i] = math.Max(0, weights[i])
		sum += weights[i]
	}
	if sum <= 0 {
		return nil, false
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights, true
}

func (s *QPSolver) projectToBounds(x []float64) []float64 {
	if len(s.bounds) == 0 {
		return x
	}
	proj := make([]float64, len(x))
	for i := range x {
		proj[i] = math.Max(s.bounds[i][0], math.Min(s.bounds[i][1], x[i]))
	}
	return proj
}

func (s *QPSolver) bucketPenalty(x []float64) float64 {
	var penalty float64
	for _, bucket := range s.buckets {
		sum := 0.0
		for _, idx := range bucket.Indices {
			sum += x[idx]
		}
		if sum < bucket.Lo {
			penalty += penaltyWeight * (bucket.Lo - sum) * (bucket.Lo - sum)
		}
		if sum > bucket.Hi {
			penalty += penaltyWeight * (sum - bucket.Hi) * (sum - bucket.Hi)
		}
	}
	return penalty
}

func (s *QPSolver) addBucketPenaltyGradient(grad, x []float64) {
	for _, bucket := range s.buckets {
		sum := 0.0
		for _, idx := range bucket.Indices {
			sum += x[idx]
		}
		if sum < bucket.Lo {
			g := 2 * penaltyWeight * (bucket.Lo - sum)
			for _, idx := range bucket.Indices {
				grad[idx] -= g
			}
		}
		if sum > bucket.Hi {
			g := 2 * penaltyWeight * (sum - bucket.Hi)
			for _, idx := range bucket.Indices {
				grad[idx] += g
			}
		}
	}
}

// PortfolioStats evaluates a weight vector against the solver's parameters.
func (s *QPSolver) PortfolioStats(w []float64) (ret, risk float64) {
	var variance float64
	for i := range w {
		ret += s.mu[i] * w[i]
		for j := range w {
			variance += w[i] * w[j] * s.sigma[i][j]
		}
	}
	return ret, math.Sqrt(math.Max(variance, 0))
}
