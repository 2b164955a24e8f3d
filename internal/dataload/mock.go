package dataload

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/quantfolio/riskapi/internal/domain"
)

const mockReturnPeriods = 60

// mockCMA returns the development asset universe with annual return and risk
// assumptions per risk-allocation bucket.
func mockCMA() []domain.AssetAssumption {
	rows := []struct {
		name   string
		ret    float64
		risk   float64
		bucket string
	}{
		{"GLOBAL CASH", 0.025, 0.01, domain.BucketStability},
		{"GLOBAL GOVERNMENT", 0.035, 0.05, domain.BucketStability},
		{"GLOBAL AGGREGATE", 0.045, 0.06, domain.BucketStability},
		{"HIGH YIELD", 0.065, 0.10, domain.BucketDiversified},
		{"GOLD", 0.04, 0.15, domain.BucketDiversified},
		{"GLOBAL", 0.08, 0.16, domain.BucketGrowth},
		{"EM", 0.10, 0.22, domain.BucketGrowth},
		{"PRIVATE DEBT", 0.07, 0.08, domain.BucketDiversified},
		{"PRIVATE INFRASTRUCTURE", 0.075, 0.12, domain.BucketDiversified},
		{"REAL ESTATE", 0.065, 0.14, domain.BucketDiversified},
		{"ABSOLUTE RETURN HS", 0.055, 0.08, domain.BucketDiversified},
		{"GROWTH DIRECTIONAL HF", 0.07, 0.12, domain.BucketGrowth},
		{"PRIVATE EQUITY", 0.12, 0.25, domain.BucketGrowth},
		{"VENTURE", 0.15, 0.35, domain.BucketGrowth},
		{"CLO", 0.08, 0.12, domain.BucketDiversified},
	}

	assets := make([]domain.AssetAssumption, len(rows))
	for i, r := range rows {
		assets[i] = domain.AssetAssumption{
			Name:   r.name,
			Return: r.ret,
			Risk:   r.risk,
			CapMax: 1.0,
			Bucket: r.bucket,
		}
	}
	return assets
}

func mockAssetNames() []string {
	names := make([]string, 0, 15)
	for _, a := range mockCMA() {
		names = append(names, a.Name)
	}
	return names
}

// mockCorrelation builds a random but valid correlation matrix over the mock
// universe (Gram matrix of a random factor loading, renormalized).
func mockCorrelation() *domain.NamedMatrix {
	names := mockAssetNames()
	corr := randomCorrelation(rand.New(rand.NewSource(42)), len(names))

	m := domain.NewNamedMatrix(names)
	for i, a := range names {
		for j, b := range names {
			m.Set(a, b, corr[i][j])
		}
	}
	return m
}

// mockReturns generates a monthly return series per asset from its expected
// monthly return and volatility, ending at the current month.
func mockReturns(nPeriods int) *domain.ReturnTable {
	assets := []string{
		"GLOBAL CASH", "GLOBAL GOVERNMENT", "GLOBAL AGGREGATE", "HIGH YIELD",
		"GOLD", "GLOBAL", "EM", "PRIVATE DEBT", "PRIVATE INFRASTRUCTURE",
		"REAL ESTATE", "ABSOLUTE RETURN HS", "GROWTH DIRECTIONAL HF",
		"PRIVATE EQUITY",
	}
	means := []float64{0.002, 0.003, 0.004, 0.005, 0.003, 0.007, 0.008, 0.006, 0.006, 0.005, 0.004, 0.006, 0.01}
	vols := []float64{0.003, 0.015, 0.018, 0.03, 0.04, 0.045, 0.06, 0.025, 0.035, 0.04, 0.025, 0.035, 0.07}

	rng := rand.New(rand.NewSource(42))
	data := make(map[string][]float64, len(assets))
	for i, a := range assets {
		col := make([]float64, nPeriods)
		for t := range col {
			col[t] = means[i] + vols[i]*rng.NormFloat64()
		}
		data[a] = col
	}
	return domain.NewReturnTable(monthEndDates(nPeriods), assets, data)
}

var mockFactorNames = []string{
	"US_Equity", "Intl_Equity", "EM_Equity", "US_Rates", "EU_Rates",
	"Credit_Spread", "USD_FX", "Commodities", "Gold", "VIX",
}

// mockBetas generates factor loadings for a synthetic security universe.
func mockBetas() *domain.BetaMatrix {
	rng := rand.New(rand.NewSource(123))

	securities := make([]string, 20)
	vals := make(map[string][]float64, len(securities))
	for i := range securities {
		securities[i] = fmt.Sprintf("Security_%d", i)
		row := make([]float64, len(mockFactorNames))
		for j := range row {
			row[j] = rng.NormFloat64() * 0.3
		}
		vals[securities[i]] = row
	}
	return &domain.BetaMatrix{
		Securities: securities,
		Factors:    append([]string(nil), mockFactorNames...),
		Vals:       vals,
	}
}

// mockFactorCov generates a factor covariance matrix from per-factor monthly
// vols and a random correlation structure.
func mockFactorCov() *domain.NamedMatrix {
	vols := []float64{0.04, 0.045, 0.06, 0.015, 0.015, 0.02, 0.02, 0.05, 0.04, 0.08}
	corr := randomCorrelation(rand.New(rand.NewSource(456)), len(mockFactorNames))

	m := domain.NewNamedMatrix(mockFactorNames)
	for i, a := range mockFactorNames {
		for j, b := range mockFactorNames {
			m.Set(a, b, vols[i]*vols[j]*corr[i][j])
		}
	}
	return m
}

// randomCorrelation normalizes the Gram matrix of a random n x n loading,
// which is positive semidefinite by construction.
func randomCorrelation(rng *rand.Rand, n int) [][]float64 {
	load := make([][]float64, n)
	for i := range load {
		load[i] = make([]float64, n)
		for j := range load[i] {
			load[i][j] = rng.NormFloat64() * 0.3
		}
	}

	gram := make([][]float64, n)
	for i := range gram {
		gram[i] = make([]float64, n)
		for j := range gram[i] {
			sum := 0.0
			for k := 0; k < n; k++ {
				sum += load[i][k] * load[j][k]
			}
			gram[i][j] = sum
		}
	}

	corr := make([][]float64, n)
	for i := range corr {
		corr[i] = make([]float64, n)
		for j := range corr[i] {
			corr[i][j] = gram[i][j] / math.Sqrt(gram[i][i]*gram[j][j])
		}
		corr[i][i] = 1
	}
	return corr
}

// monthEndDates returns n month-end dates ascending, ending at the current
// month, formatted YYYY-MM-DD.
func monthEndDates(n int) []string {
	now := time.Now().UTC()
	out := make([]string, n)
	for i := 0; i < n; i++ {
		offset := -(n - 1 - i)
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, offset, 0)
		out[i] = first.AddDate(0, 1, -1).Format("2006-01-02")
	}
	return out
}
