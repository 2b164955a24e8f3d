package risk

import (
	"math"

	"github.com/quantfolio/riskapi/internal/domain"
	"github.com/quantfolio/riskapi/pkg/formulas"
)

// annualizationFactor converts monthly volatility to annual.
var annualizationFactor = math.Sqrt(12)

// CovarianceOptions selects the estimator used inside the attribution engine.
type CovarianceOptions struct {
	UseEWMA    bool
	Decay      float64
	MinPeriods int
}

// DefaultCovarianceOptions matches the estimation defaults used across the
// engine: EWMA with 0.94 decay, falling back to the sample estimator below
// 12 observations.
func DefaultCovarianceOptions() CovarianceOptions {
	return CovarianceOptions{UseEWMA: true, Decay: 0.94, MinPeriods: 12}
}

func (o CovarianceOptions) withDefaults() CovarianceOptions {
	if o.Decay <= 0 || o.Decay >= 1 {
		o.Decay = 0.94
	}
	if o.MinPeriods <= 0 {
		o.MinPeriods = 12
	}
	return o
}

func (o CovarianceOptions) estimate(table *domain.ReturnTable) [][]float64 {
	if o.UseEWMA {
		return EWMACovariance(table, o.Decay, o.MinPeriods)
	}
	return SimpleCovariance(table)
}

// Contributions computes marginal (MCTR) and percentage (PCTR) contributions
// to portfolio risk. Weights are restricted to assets present in the table and
// renormalized to sum 1.
func Contributions(table *domain.ReturnTable, weights map[string]float64, opts CovarianceOptions) (*ContributionResult, error) {
	opts = opts.withDefaults()

	assets, w, err := alignWeights(table, weights)
	if err != nil {
		return nil, err
	}

	sub := table.Select(assets)
	cov := formulas.RepairPSD(opts.estimate(sub), psdEpsilon)

	portfolioVar := quadraticForm(w, cov)
	portfolioVol := math.Sqrt(portfolioVar)

	n := len(assets)
	mctr := make([]float64, n)
	if portfolioVol > 0 {
		for i := 0; i < n; i++ {
			s := 0.0
			for j := 0; j < n; j++ {
				s += cov[i][j] * w[j]
			}
			mctr[i] = s / portfolioVol
		}
	}

	pctr := make([]float64, n)
	total := 0.0
	for i := 0; i < n; i++ {
		pctr[i] = w[i] * mctr[i]
		total += pctr[i]
	}
	if total != 0 {
		for i := range pctr {
			pctr[i] /= total
		}
	}

	return &ContributionResult{
		PCTR:                   zipMap(assets, pctr),
		MCTR:                   zipMap(assets, mctr),
		Weights:                zipMap(assets, w),
		PortfolioVol:           portfolioVol,
		PortfolioVolAnnualized: portfolioVol * annualizationFactor,
	}, nil
}

// TrackingError computes annualized tracking error between two weight vectors
// and decomposes it over active weights.
func TrackingError(table *domain.ReturnTable, portfolio, benchmark map[string]float64, opts CovarianceOptions) (*TrackingErrorResult, error) {
	opts = opts.withDefaults()

	assets, active, err := activeWeights(table, portfolio, benchmark)
	if err != nil {
		return nil, err
	}

	sub := table.Select(assets)
	cov := formulas.RepairPSD(opts.estimate(sub), psdEpsilon)

	teVar := quadraticForm(active, cov)
	te := math.Sqrt(teVar) * annualizationFactor

	n := len(assets)
	contrib := make([]float64, n)
	if teVar > 0 {
		teVol := math.Sqrt(teVar)
		total := 0.0
		for i := 0; i < n; i++ {
			s := 0.0
			for j := 0; j < n; j++ {
				s += cov[i][j] * active[j]
			}
			contrib[i] = active[i] * s / teVol
			total += contrib[i]
		}
		if total != 0 {
			for i := range contrib {
				contrib[i] /= total
			}
		}
	}

	return &TrackingErrorResult{
		TrackingError:   te,
		ActiveWeights:   zipMap(assets, active),
		TEContributions: zipMap(assets, contrib),
	}, nil
}

// PCTE runs the tracking-error pipeline but normalizes contributions by the
// sum of their absolute values, which keeps long and short active positions
// readable when contributions have mixed signs.
func PCTE(table *domain.ReturnTable, portfolio, benchmark map[string]float64, opts CovarianceOptions) (*PCTEResult, error) {
	opts = opts.withDefaults()

	assets, active, err := activeWeights(table, portfolio, benchmark)
	if err != nil {
		return nil, err
	}

	sub := table.Select(assets)
	cov := formulas.RepairPSD(opts.estimate(sub), psdEpsilon)

	teVar := quadraticForm(active, cov)
	teMonthly := math.Sqrt(teVar)

	n := len(assets)
	mcte := make([]float64, n)
	pcte := make([]float64, n)
	if teMonthly > 0 {
		absTotal := 0.0
		for i := 0; i < n; i++ {
			s := 0.0
			for j := 0; j < n; j++ {
				s += cov[i][j] * active[j]
			}
			mcte[i] = s / teMonthly
			pcte[i] = active[i] * mcte[i]
			absTotal += math.Abs(pcte[i])
		}
		if absTotal > 0 {
			for i := range pcte {
				pcte[i] /= absTotal
			}
		}
	}

	return &PCTEResult{
		TrackingError:        teMonthly * annualizationFactor,
		TrackingErrorMonthly: teMonthly,
		PCTE:                 zipMap(assets, pcte),
		MCTE:                 zipMap(assets, mcte),
		ActiveWeights:        zipMap(assets, active),
	}, nil
}

// FactorRiskDecomposition splits the risk of a weight vector into systematic
// (factor) and specific components. Weights are used as given so that active
// (zero-sum) vectors decompose correctly.
func FactorRiskDecomposition(weights map[string]float64, betas *domain.BetaMatrix, factorCov *domain.NamedMatrix, residualVar map[string]float64) *RiskDecomposition {
	// Securities present in both the weights and the loading matrix.
	var securities []string
	for _, s := range betas.Securities {
		if _, ok := weights[s]; ok {
			securities = append(securities, s)
		}
	}

	// Factors present in both the loadings and the factor covariance.
	var factors []string
	factorPos := make(map[string]int)
	for j, f := range betas.Factors {
		if _, ok := factorCov.Index(f); ok {
			factors = append(factors, f)
			factorPos[f] = j
		}
	}

	k := len(factors)
	F := make([][]float64, k)
	for i := range F {
		F[i] = make([]float64, k)
		for j := range F[i] {
			v, _ := factorCov.At(factors[i], factors[j])
			F[i][j] = v
		}
	}
	F = formulas.RepairPSD(F, psdEpsilon)

	// Portfolio factor exposure e = w'B and specific variance sum(w^2 * eps).
	exposures := make([]float64, k)
	specificVar := 0.0
	for _, s := range securities {
		w := weights[s]
		row := betas.Row(s)
		for i, f := range factors {
			exposures[i] += w * row[factorPos[f]]
		}
		eps := residualVar[s]
		if !math.IsNaN(eps) {
			specificVar += w * w * eps
		}
	}

	marginal := make([]float64, k)
	systematicVar := 0.0
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			marginal[i] += F[i][j] * exposures[j]
		}
		systematicVar += exposures[i] * marginal[i]
	}

	contrib := make([]float64, k)
	total := 0.0
	for i := 0; i < k; i++ {
		contrib[i] = exposures[i] * marginal[i]
		total += contrib[i]
	}
	if total != 0 {
		for i := range contrib {
			contrib[i] /= total
		}
	}

	totalVar := systematicVar + specificVar
	systematicPct := 0.0
	if totalVar > 0 {
		systematicPct = systematicVar / totalVar * 100
	}

	return &RiskDecomposition{
		SystematicRisk:      math.Sqrt(math.Max(systematicVar, 0)) * annualizationFactor,
		SpecificRisk:        math.Sqrt(math.Max(specificVar, 0)) * annualizationFactor,
		TotalRisk:           math.Sqrt(math.Max(totalVar, 0)) * annualizationFactor,
		SystematicPct:       systematicPct,
		SpecificPct:         100 - systematicPct,
		FactorContributions: zipMap(factors, contrib),
		FactorExposures:     zipMap(factors, exposures),
	}
}

// FullRiskDecomposition runs portfolio, benchmark and active weights through
// the same factor model. Portfolio and benchmark weights are normalized before
// differencing.
func FullRiskDecomposition(portfolio, benchmark map[string]float64, betas *domain.BetaMatrix, factorCov *domain.NamedMatrix, residualVar map[string]float64) (*FullDecompositionResult, error) {
	portNorm, ok := domain.NormalizeWeights(portfolio)
	if !ok {
		return nil, ErrInvalidWeights
	}
	benchNorm, ok := domain.NormalizeWeights(benchmark)
	if !ok {
		return nil, ErrInvalidWeights
	}

	active := make(map[string]float64)
	for s, w := range portNorm {
		active[s] += w
	}
	for s, w := range benchNorm {
		active[s] -= w
	}

	port := FactorRiskDecomposition(portNorm, betas, factorCov, residualVar)
	bench := FactorRiskDecomposition(benchNorm, betas, factorCov, residualVar)
	act := FactorRiskDecomposition(active, betas, factorCov, residualVar)

	return &FullDecompositionResult{
		Portfolio:           port,
		Benchmark:           bench,
		Active:              act,
		FactorContributions: act.FactorContributions,
	}, nil
}

// alignWeights intersects the weights with the table's assets (table order)
// and normalizes them to sum 1.
func alignWeights(table *domain.ReturnTable, weights map[string]float64) ([]string, []float64, error) {
	var assets []string
	for _, a := range table.Assets {
		if _, ok := weights[a]; ok {
			assets = append(assets, a)
		}
	}
	if len(assets) == 0 {
		return nil, nil, ErrNoOverlap
	}

	total := 0.0
	for _, a := range assets {
		total += weights[a]
	}
	if total <= 0 {
		return nil, nil, ErrInvalidWeights
	}

	w := make([]float64, len(assets))
	for i, a := range assets {
		w[i] = weights[a] / total
	}
	return assets, w, nil
}

// activeWeights builds the active weight vector over the union of both weight
// maps, restricted to the table's assets, with each side normalized first.
func activeWeights(table *domain.ReturnTable, portfolio, benchmark map[string]float64) ([]string, []float64, error) {
	union := make(map[string]bool, len(portfolio)+len(benchmark))
	for a := range portfolio {
		union[a] = true
	}
	for a := range benchmark {
		union[a] = true
	}

	var assets []string
	for _, a := range table.Assets {
		if union[a] {
			assets = append(assets, a)
		}
	}
	if len(assets) == 0 {
		return nil, nil, ErrNoOverlap
	}

	portTotal, benchTotal := 0.0, 0.0
	for _, a := range assets {
		portTotal += portfolio[a]
		benchTotal += benchmark[a]
	}
	if portTotal <= 0 || benchTotal <= 0 {
		return nil, nil, ErrInvalidWeights
	}

	active := make([]float64, len(assets))
	for i, a := range assets {
		active[i] = portfolio[a]/portTotal - benchmark[a]/benchTotal
	}
	return assets, active, nil
}

func quadraticForm(w []float64, cov [][]float64) float64 {
	total := 0.0
	for i := range w {
		for j := range w {
			total += w[i] * cov[i][j] * w[j]
		}
	}
	return total
}

func zipMap(keys []string, vals []float64) map[string]float64 {
	out := make(map[string]float64, len(keys))
	for i, k := range keys {
		out[k] = vals[i]
	}
	return out
}
