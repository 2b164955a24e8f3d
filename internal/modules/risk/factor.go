package risk

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/quantfolio/riskapi/internal/domain"
)

// FactorModelOptions configures the per-security factor regressions.
type FactorModelOptions struct {
	MinObservations int // minimum overlapping periods (default 24)
	CVFolds         int // cross-validation folds for the penalty search (default 5)
}

func (o FactorModelOptions) withDefaults() FactorModelOptions {
	if o.MinObservations <= 0 {
		o.MinObservations = 24
	}
	if o.CVFolds <= 0 {
		o.CVFolds = 5
	}
	return o
}

// FactorModel holds estimated factor loadings and residual variances.
// ResidualVariance is NaN for securities that never produced a fit; the
// attribution engine treats NaN as zero. Fallback marks securities whose
// regression failed and reverted to zero betas.
type FactorModel struct {
	Securities       []string
	Factors          []string
	Betas            map[string][]float64
	ResidualVariance map[string]float64
	Fallback         map[string]bool
}

// BetaMatrix converts the model into the shared loading-matrix form.
func (m *FactorModel) BetaMatrix() *domain.BetaMatrix {
	return &domain.BetaMatrix{
		Securities: m.Securities,
		Factors:    m.Factors,
		Vals:       m.Betas,
	}
}

// EstimateFactorModel regresses each security's returns on the factor returns
// with an L1 penalty chosen by cross-validation. Securities with too few valid
// periods get zero betas; failed fits fall back to zero betas with the raw
// return variance as residual.
func EstimateFactorModel(securities, factors *domain.ReturnTable, opts FactorModelOptions, log zerolog.Logger) (*FactorModel, error) {
	opts = opts.withDefaults()

	secAligned, facAligned := securities.IntersectDates(factors)
	overlap := secAligned.NumPeriods()
	if overlap < opts.MinObservations {
		return nil, fmt.Errorf("%w: %d < %d", ErrInsufficientData, overlap, opts.MinObservations)
	}

	model := &FactorModel{
		Securities:       append([]string(nil), secAligned.Assets...),
		Factors:          append([]string(nil), facAligned.Assets...),
		Betas:            make(map[string][]float64, len(secAligned.Assets)),
		ResidualVariance: make(map[string]float64, len(secAligned.Assets)),
		Fallback:         make(map[string]bool),
	}

	nFactors := len(facAligned.Assets)
	factorCols := make([][]float64, nFactors)
	for j, f := range facAligned.Assets {
		factorCols[j] = facAligned.Column(f)
	}

	for _, security := range secAligned.Assets {
		y := secAligned.Column(security)

		// Keep only periods where the security and every factor are observed.
		var X [][]float64
		var yValid []float64
		for t := 0; t < overlap; t++ {
			if math.IsNaN(y[t]) {
				continue
			}
			row := make([]float64, nFactors)
			ok := true
			for j := 0; j < nFactors; j++ {
				v := factorCols[j][t]
				if math.IsNaN(v) {
					ok = false
					break
				}
				row[j] = v
			}
			if !ok {
				continue
			}
			X = append(X, row)
			yValid = append(yValid, y[t])
		}

		if len(yValid) < opts.MinObservations {
			model.Betas[security] = make([]float64, nFactors)
			model.ResidualVariance[security] = math.NaN()
			continue
		}

		folds := opts.CVFolds
		if half := len(yValid) / 2; half < folds {
			folds = half
		}

		fit, err := fitLassoCV(X, yValid, folds)
		if err != nil {
			log.Warn().
				Err(err).
				Str("security", security).
				Int("observations", len(yValid)).
				Msg("Lasso fit failed, using zero betas")
			model.Betas[security] = make([]float64, nFactors)
			model.ResidualVariance[security] = populationVariance(yValid)
			model.Fallback[security] = true
			continue
		}

		residuals := make([]float64, len(yValid))
		for i, row := range X {
			residuals[i] = yValid[i] - fit.predict(row)
		}

		model.Betas[security] = fit.coefs
		model.ResidualVariance[security] = populationVariance(residuals)
	}

	return model, nil
}

// populationVariance uses the n denominator, matching how residual spread is
// reported by the estimation pipeline.
func populationVariance(data []float64) float64 {
	n := len(data)
	if n == 0 {
		return math.NaN()
	}
	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(n)

	ss := 0.0
	for _, v := range data {
		d := v - mean
		ss += d * d
	}
	return ss / float64(n)
}
