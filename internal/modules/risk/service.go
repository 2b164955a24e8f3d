package risk

import (
	"errors"
	"math"

	"github.com/rs/zerolog"

	"github.com/quantfolio/riskapi/internal/dataload"
	"github.com/quantfolio/riskapi/internal/domain"
)

// ErrNoData is returned when analyses run before the first dataset load.
var ErrNoData = errors.New("no dataset loaded")

const monthsPerYear = 12

// ServiceOptions carries the configuration the analyses depend on.
type ServiceOptions struct {
	RiskFreeRate    float64
	EWMADecay       float64 // default decay when a request leaves it unset
	MinPeriods      int
	MinObservations int
	CVFolds         int
}

// Service runs risk analyses against the current dataset snapshot.
type Service struct {
	data *dataload.Provider
	opts ServiceOptions
	log  zerolog.Logger
}

// NewService creates a risk analysis service.
func NewService(data *dataload.Provider, opts ServiceOptions, log zerolog.Logger) *Service {
	return &Service{
		data: data,
		opts: opts,
		log:  log.With().Str("component", "risk_service").Logger(),
	}
}

// covOpts applies the configured estimation defaults when the request leaves
// decay unset.
func (s *Service) covOpts(useEWMA bool, decay float64) CovarianceOptions {
	if decay == 0 {
		decay = s.opts.EWMADecay
	}
	return CovarianceOptions{UseEWMA: useEWMA, Decay: decay, MinPeriods: s.opts.MinPeriods}
}

func (s *Service) dataset() (*dataload.Dataset, error) {
	ds := s.data.Current()
	if ds == nil {
		return nil, ErrNoData
	}
	return ds, nil
}

// AssetsInfo describes the analyzable universe.
type AssetsInfo struct {
	Assets    []string          `json:"assets"`
	Factors   []string          `json:"factors"`
	DateRange map[string]string `json:"date_range"`
}

// Assets lists the return-series assets, factor names and covered date range.
func (s *Service) Assets() (*AssetsInfo, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}

	info := &AssetsInfo{
		Assets:    append([]string(nil), ds.Returns.Assets...),
		Factors:   append([]string(nil), ds.FactorCov.Names...),
		DateRange: map[string]string{},
	}
	if n := ds.Returns.NumPeriods(); n > 0 {
		info.DateRange["start"] = ds.Returns.Dates[0]
		info.DateRange["end"] = ds.Returns.Dates[n-1]
	}
	return info, nil
}

// Contributions computes PCTR/MCTR for the given portfolio.
func (s *Service) Contributions(portfolio map[string]float64, useEWMA bool, decay float64) (*ContributionResult, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}
	return Contributions(ds.Returns, portfolio, s.covOpts(useEWMA, decay))
}

// TrackingError computes annualized tracking error with per-asset
// contributions.
func (s *Service) TrackingError(portfolio, benchmark map[string]float64, useEWMA bool) (*TrackingErrorResult, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}
	return TrackingError(ds.Returns, portfolio, benchmark, s.covOpts(useEWMA, 0))
}

// PCTE computes tracking error with contributions normalized by their
// absolute sum.
func (s *Service) PCTE(portfolio, benchmark map[string]float64, useEWMA bool) (*PCTEResult, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}
	return PCTE(ds.Returns, portfolio, benchmark, s.covOpts(useEWMA, 0))
}

// FactorDecomposition estimates factor loadings for the return universe and
// splits the portfolio's risk into systematic and specific components.
func (s *Service) FactorDecomposition(portfolio map[string]float64) (*RiskDecomposition, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}

	model, err := s.estimateModel(ds)
	if err != nil {
		return nil, err
	}
	return FactorRiskDecomposition(portfolio, model.BetaMatrix(), ds.FactorCov, model.ResidualVariance), nil
}

// FullDecomposition runs portfolio, benchmark and active weights through the
// estimated factor model.
func (s *Service) FullDecomposition(portfolio, benchmark map[string]float64) (*FullDecompositionResult, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}

	model, err := s.estimateModel(ds)
	if err != nil {
		return nil, err
	}
	return FullRiskDecomposition(portfolio, benchmark, model.BetaMatrix(), ds.FactorCov, model.ResidualVariance)
}

// Diversification computes diversification ratio and related metrics.
func (s *Service) Diversification(portfolio map[string]float64, useEWMA bool) (*DiversificationResult, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}
	return DiversificationMetrics(ds.Returns, portfolio, s.covOpts(useEWMA, 0))
}

// PerformanceReport bundles realized statistics for the portfolio, the
// optional benchmark, and the excess series between them.
type PerformanceReport struct {
	Portfolio *PerformanceStats `json:"portfolio"`
	Benchmark *PerformanceStats `json:"benchmark,omitempty"`
	Excess    *PerformanceStats `json:"excess,omitempty"`
}

// Performance computes realized performance statistics.
func (s *Service) Performance(portfolio, benchmark map[string]float64) (*PerformanceReport, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}

	portSeries, err := portfolioSeries(ds.Returns, portfolio)
	if err != nil {
		return nil, err
	}
	report := &PerformanceReport{
		Portfolio: ComputePerformanceStats(portSeries, monthsPerYear, s.opts.RiskFreeRate),
	}

	if len(benchmark) > 0 {
		benchSeries, err := portfolioSeries(ds.Returns, benchmark)
		if err != nil {
			return nil, err
		}
		excess := make([]float64, len(portSeries))
		for i := range excess {
			excess[i] = portSeries[i] - benchSeries[i]
		}
		report.Benchmark = ComputePerformanceStats(benchSeries, monthsPerYear, s.opts.RiskFreeRate)
		report.Excess = ComputePerformanceStats(excess, monthsPerYear, s.opts.RiskFreeRate)
	}
	return report, nil
}

// VaRCVaR computes empirical value-at-risk for the portfolio return series.
func (s *Service) VaRCVaR(portfolio map[string]float64, confidence float64) (*VaRCVaRResult, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}

	series, err := portfolioSeries(ds.Returns, portfolio)
	if err != nil {
		return nil, err
	}
	return VaRCVaR(series, confidence, monthsPerYear), nil
}

// FullAnalysisResult bundles the standard risk report.
type FullAnalysisResult struct {
	Contributions   *ContributionResult    `json:"contributions"`
	Diversification *DiversificationResult `json:"diversification"`
	Performance     *PerformanceStats      `json:"performance"`
}

// FullAnalysis runs contributions, diversification and performance in one
// pass.
func (s *Service) FullAnalysis(portfolio map[string]float64, useEWMA bool, decay float64) (*FullAnalysisResult, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}

	opts := s.covOpts(useEWMA, decay)
	contributions, err := Contributions(ds.Returns, portfolio, opts)
	if err != nil {
		return nil, err
	}
	diversification, err := DiversificationMetrics(ds.Returns, portfolio, opts)
	if err != nil {
		return nil, err
	}
	series, err := portfolioSeries(ds.Returns, portfolio)
	if err != nil {
		return nil, err
	}

	return &FullAnalysisResult{
		Contributions:   contributions,
		Diversification: diversification,
		Performance:     ComputePerformanceStats(series, monthsPerYear, s.opts.RiskFreeRate),
	}, nil
}

// SegmentTrackingError computes growth/stability tier tracking errors. A nil
// tier mapping falls back to the CMA bucket labels.
func (s *Service) SegmentTrackingError(portfolio map[string]float64, opts SegmentOptions) (*SegmentTrackingErrorResult, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}
	if opts.TierMapping == nil {
		opts.TierMapping = ds.Buckets()
	}
	return SegmentTrackingError(ds.Returns, portfolio, opts)
}

// estimateModel fits the per-security factor regressions against a flat
// factor history. Factor return series are not part of the input data, so
// every fit resolves through the documented fallback path and specific risk
// carries the full attribution.
func (s *Service) estimateModel(ds *dataload.Dataset) (*FactorModel, error) {
	factors := flatFactorTable(ds.Returns.Dates, ds.FactorCov.Names)
	return EstimateFactorModel(ds.Returns, factors, FactorModelOptions{
		MinObservations: s.opts.MinObservations,
		CVFolds:         s.opts.CVFolds,
	}, s.log)
}

func flatFactorTable(dates []string, factors []string) *domain.ReturnTable {
	data := make(map[string][]float64, len(factors))
	for _, f := range factors {
		data[f] = make([]float64, len(dates))
	}
	return domain.NewReturnTable(dates, factors, data)
}

// portfolioSeries normalizes the weights over everything the caller sent and
// builds the weighted return series, skipping assets missing from the table.
func portfolioSeries(table *domain.ReturnTable, weights map[string]float64) ([]float64, error) {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 || math.IsNaN(total) {
		return nil, ErrInvalidWeights
	}

	normalized := make(map[string]float64, len(weights))
	matched := false
	for a, w := range weights {
		normalized[a] = w / total
		if table.HasAsset(a) {
			matched = true
		}
	}
	if !matched {
		return nil, ErrNoOverlap
	}
	return table.PortfolioReturns(normalized), nil
}
