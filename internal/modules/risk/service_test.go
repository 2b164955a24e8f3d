package risk

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/riskapi/internal/dataload"
)

// newTestService loads the built-in development dataset from an empty data
// directory.
func newTestService(t *testing.T) *Service {
	t.Helper()
	loader := dataload.NewLoader(t.TempDir(), nil, zerolog.Nop())
	provider := dataload.NewProvider(loader, zerolog.Nop())
	require.NoError(t, provider.Reload(context.Background()))

	return NewService(provider, ServiceOptions{
		RiskFreeRate:    0.03,
		EWMADecay:       0.94,
		MinPeriods:      12,
		MinObservations: 24,
		CVFolds:         5,
	}, zerolog.Nop())
}

func testPortfolio() map[string]float64 {
	return map[string]float64{"GLOBAL": 0.4, "EM": 0.2, "GLOBAL AGGREGATE": 0.4}
}

func testBenchmark() map[string]float64 {
	return map[string]float64{"GLOBAL": 0.6, "GLOBAL AGGREGATE": 0.4}
}

func TestServiceBeforeFirstLoad(t *testing.T) {
	loader := dataload.NewLoader(t.TempDir(), nil, zerolog.Nop())
	provider := dataload.NewProvider(loader, zerolog.Nop())
	svc := NewService(provider, ServiceOptions{}, zerolog.Nop())

	_, err := svc.Assets()
	assert.ErrorIs(t, err, ErrNoData)

	_, err = svc.Contributions(testPortfolio(), true, 0)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestServiceAssets(t *testing.T) {
	svc := newTestService(t)

	info, err := svc.Assets()
	require.NoError(t, err)
	assert.Len(t, info.Assets, 13)
	assert.Len(t, info.Factors, 10)
	assert.NotEmpty(t, info.DateRange["start"])
	assert.NotEmpty(t, info.DateRange["end"])
	assert.Less(t, info.DateRange["start"], info.DateRange["end"])
}

func TestServiceContributions(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Contributions(testPortfolio(), true, 0)
	require.NoError(t, err)

	assert.Greater(t, result.PortfolioVolAnnualized, 0.0)
	pctrSum := 0.0
	for _, v := range result.PCTR {
		pctrSum += v
	}
	assert.InDelta(t, 1.0, pctrSum, 1e-9)
}

func TestServiceTrackingError(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.TrackingError(testPortfolio(), testBenchmark(), true)
	require.NoError(t, err)
	assert.Greater(t, result.TrackingError, 0.0)

	// Identical portfolios track perfectly.
	same, err := svc.TrackingError(testBenchmark(), testBenchmark(), true)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, same.TrackingError, 1e-9)
}

func TestServicePCTE(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.PCTE(testPortfolio(), testBenchmark(), true)
	require.NoError(t, err)
	assert.Greater(t, result.TrackingError, 0.0)

	absSum := 0.0
	for _, v := range result.PCTE {
		if v < 0 {
			v = -v
		}
		absSum += v
	}
	assert.InDelta(t, 1.0, absSum, 1e-9)
}

func TestServiceFactorDecomposition(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.FactorDecomposition(testPortfolio())
	require.NoError(t, err)

	// With a flat factor history every regression falls back to zero betas,
	// so all risk lands in the specific bucket.
	assert.InDelta(t, 0.0, result.SystematicRisk, 1e-12)
	assert.Greater(t, result.SpecificRisk, 0.0)
	assert.InDelta(t, result.TotalRisk, result.SpecificRisk, 1e-12)
}

func TestServiceFullDecomposition(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.FullDecomposition(testPortfolio(), testBenchmark())
	require.NoError(t, err)
	require.NotNil(t, result.Portfolio)
	require.NotNil(t, result.Benchmark)
	require.NotNil(t, result.Active)
}

func TestServiceDiversification(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Diversification(testPortfolio(), true)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.DiversificationRatio, 1.0)
	assert.Greater(t, result.PortfolioVolAnnualized, 0.0)
}

func TestServicePerformance(t *testing.T) {
	svc := newTestService(t)

	report, err := svc.Performance(testPortfolio(), nil)
	require.NoError(t, err)
	require.NotNil(t, report.Portfolio)
	assert.Nil(t, report.Benchmark)
	assert.Nil(t, report.Excess)

	report, err = svc.Performance(testPortfolio(), testBenchmark())
	require.NoError(t, err)
	require.NotNil(t, report.Benchmark)
	require.NotNil(t, report.Excess)
	assert.Greater(t, report.Portfolio.Volatility, 0.0)
}

func TestServicePerformanceRejectsBadWeights(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Performance(map[string]float64{"GLOBAL": -1}, nil)
	assert.ErrorIs(t, err, ErrInvalidWeights)

	_, err = svc.Performance(map[string]float64{"NOT AN ASSET": 1}, nil)
	assert.ErrorIs(t, err, ErrNoOverlap)
}

func TestServiceVaRCVaR(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.VaRCVaR(testPortfolio(), 0.95)
	require.NoError(t, err)
	assert.Equal(t, 60, result.Observations)
	// CVaR averages the tail at or below the VaR cutoff.
	assert.LessOrEqual(t, result.CVaR, result.VaR)
}

func TestServiceFullAnalysis(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.FullAnalysis(testPortfolio(), true, 0)
	require.NoError(t, err)
	require.NotNil(t, result.Contributions)
	require.NotNil(t, result.Diversification)
	require.NotNil(t, result.Performance)
}

func TestServiceSegmentTrackingErrorUsesBuckets(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.SegmentTrackingError(testPortfolio(), SegmentOptions{})
	require.NoError(t, err)
	assert.Greater(t, result.GrowthAssetsCount, 0)
	assert.Greater(t, result.StabilityAssetsCount, 0)
}
