package risk

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Lasso solver settings. The objective matches the usual scaling
// (1/(2n))*||y - Xw - b||^2 + alpha*||w||_1 with a fitted intercept.
const (
	lassoMaxIter  = 5000
	lassoTol      = 1e-6
	lassoNumAlpha = 30
	lassoAlphaEps = 1e-3
)

var errDegenerateFit = errors.New("degenerate regression inputs")

type lassoModel struct {
	coefs     []float64
	intercept float64
}

func (m *lassoModel) predict(row []float64) float64 {
	return m.intercept + floats.Dot(m.coefs, row)
}

// fitLassoCV selects the L1 penalty by k-fold cross-validation over a
// geometric alpha grid, then refits on the full sample with the winner.
func fitLassoCV(X [][]float64, y []float64, folds int) (*lassoModel, error) {
	n := len(y)
	if n == 0 || len(X) != n || folds < 2 {
		return nil, errDegenerateFit
	}
	p := len(X[0])
	if p == 0 {
		return nil, errDegenerateFit
	}

	alphas := alphaGrid(X, y)
	if alphas == nil {
		return nil, errDegenerateFit
	}

	foldErr := make([]float64, len(alphas))
	for f := 0; f < folds; f++ {
		trainX, trainY, testX, testY := splitFold(X, y, folds, f)
		if len(trainY) < 2 || len(testY) == 0 {
			return nil, errDegenerateFit
		}
		// Warm-start down the alpha path within each fold.
		var warm []float64
		for a, alpha := range alphas {
			model := fitLasso(trainX, trainY, alpha, warm)
			warm = model.coefs
			mse := 0.0
			for i, row := range testX {
				diff := model.predict(row) - testY[i]
				mse += diff * diff
			}
			foldErr[a] += mse / float64(len(testY))
		}
	}

	best := 0
	for a := range alphas {
		if foldErr[a] < foldErr[best] {
			best = a
		}
	}

	return fitLasso(X, y, alphas[best], nil), nil
}

// fitLasso runs cyclic coordinate descent on mean-centered data.
func fitLasso(X [][]float64, y []float64, alpha float64, warm []float64) *lassoModel {
	n := len(y)
	p := len(X[0])

	colMean := make([]float64, p)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			colMean[j] += X[i][j]
		}
		colMean[j] /= float64(n)
	}
	yMean := floats.Sum(y) / float64(n)

	xc := make([][]float64, n)
	for i := range xc {
		xc[i] = make([]float64, p)
		for j := 0; j < p; j++ {
			xc[i][j] = X[i][j] - colMean[j]
		}
	}

	// Per-column second moments; constant columns stay at zero weight.
	colNorm := make([]float64, p)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			colNorm[j] += xc[i][j] * xc[i][j]
		}
		colNorm[j] /= float64(n)
	}

	w := make([]float64, p)
	if warm != nil && len(warm) == p {
		copy(w, warm)
	}

	resid := make([]float64, n)
	for i := 0; i < n; i++ {
		resid[i] = y[i] - yMean
		for j := 0; j < p; j++ {
			resid[i] -= xc[i][j] * w[j]
		}
	}

	for iter := 0; iter < lassoMaxIter; iter++ {
		maxDelta := 0.0
		for j := 0; j < p; j++ {
			if colNorm[j] == 0 {
				continue
			}
			rho := 0.0
			for i := 0; i < n; i++ {
				rho += xc[i][j] * (resid[i] + xc[i][j]*w[j])
			}
			rho /= float64(n)

			next := softThreshold(rho, alpha) / colNorm[j]
			if delta := next - w[j]; delta != 0 {
				for i := 0; i < n; i++ {
					resid[i] -= xc[i][j] * delta
				}
				if ad := math.Abs(delta); ad > maxDelta {
					maxDelta = ad
				}
				w[j] = next
			}
		}
		if maxDelta < lassoTol {
			break
		}
	}

	intercept := yMean
	for j := 0; j < p; j++ {
		intercept -= colMean[j] * w[j]
	}
	return &lassoModel{coefs: w, intercept: intercept}
}

// alphaGrid builds a descending geometric grid from the smallest alpha that
// zeroes every coefficient down to alphaMax*lassoAlphaEps.
func alphaGrid(X [][]float64, y []float64) []float64 {
	n := len(y)
	p := len(X[0])
	yMean := floats.Sum(y) / float64(n)

	alphaMax := 0.0
	for j := 0; j < p; j++ {
		colMean := 0.0
		for i := 0; i < n; i++ {
			colMean += X[i][j]
		}
		colMean /= float64(n)
		dot := 0.0
		for i := 0; i < n; i++ {
			dot += (X[i][j] - colMean) * (y[i] - yMean)
		}
		if a := math.Abs(dot) / float64(n); a > alphaMax {
			alphaMax = a
		}
	}
	if alphaMax <= 0 || math.IsNaN(alphaMax) {
		return nil
	}

	alphas := make([]float64, lassoNumAlpha)
	ratio := math.Pow(lassoAlphaEps, 1/float64(lassoNumAlpha-1))
	a := alphaMax
	for i := range alphas {
		alphas[i] = a
		a *= ratio
	}
	return alphas
}

// splitFold carves out contiguous fold f of k as the test set.
func splitFold(X [][]float64, y []float64, k, f int) (trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) {
	n := len(y)
	start := f * n / k
	end := (f + 1) * n / k
	for i := 0; i < n; i++ {
		if i >= start && i < end {
			testX = append(testX, X[i])
			testY = append(testY, y[i])
		} else {
			trainX = append(trainX, X[i])
			trainY = append(trainY, y[i])
		}
	}
	return trainX, trainY, testX, testY
}

func softThreshold(v, threshold float64) float64 {
	switch {
	case v > threshold:
		return v - threshold
	case v < -threshold:
		return v + threshold
	default:
		return 0
	}
}
