package optimization

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/quantfolio/riskapi/internal/dataload"
	"github.com/quantfolio/riskapi/internal/domain"
)

// ErrNoData is returned when optimizations run before the first dataset load.
var ErrNoData = errors.New("no dataset loaded")

// ServiceOptions carries the optimizer configuration.
type ServiceOptions struct {
	RiskFreeRate     float64
	FrontierPoints   int
	Universe         UniverseConfig
	DefaultThreshold float64
}

// Service runs optimizations against the current dataset snapshot.
type Service struct {
	data *dataload.Provider
	opts ServiceOptions
	log  zerolog.Logger
}

// NewService creates an optimization service.
func NewService(data *dataload.Provider, opts ServiceOptions, log zerolog.Logger) *Service {
	if opts.Universe.Core == nil && opts.Universe.Private == nil && opts.Universe.Special == nil {
		opts.Universe = DefaultUniverseConfig()
	}
	if opts.DefaultThreshold <= 0 {
		opts.DefaultThreshold = 0.03
	}
	return &Service{
		data: data,
		opts: opts,
		log:  log.With().Str("component", "optimization_service").Logger(),
	}
}

func (s *Service) dataset() (*dataload.Dataset, error) {
	ds := s.data.Current()
	if ds == nil {
		return nil, ErrNoData
	}
	return ds, nil
}

// Frontier computes the efficient frontier for the requested universe.
func (s *Service) Frontier(mode Mode, caps CapsTemplate, customAssets []string, nPoints int) (*FrontierResult, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}
	if nPoints <= 0 {
		nPoints = s.opts.FrontierPoints
	}
	return ComputeEfficientFrontier(ds.CMA, ds.Correlation, FrontierOptions{
		Mode:         mode,
		CapsTemplate: caps,
		CustomAssets: customAssets,
		NPoints:      nPoints,
		Universe:     s.opts.Universe,
		Log:          s.log,
	}), nil
}

// Benchmark computes the closed-form blended benchmark.
func (s *Service) Benchmark(opts BenchmarkOptions) (*BlendedBenchmark, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}
	return CalculateBlendedBenchmark(ds.CMA, ds.Correlation, opts), nil
}

// Inefficiencies flags positions whose proposed allocation deviates from the
// current book or the benchmark. Bucket labels come from the CMA table.
func (s *Service) Inefficiencies(holdings []domain.Holding, benchmark map[string]float64, threshold float64) ([]InefficiencyFlag, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = s.opts.DefaultThreshold
	}
	return DetectInefficiencies(holdings, ds.Buckets(), benchmark, threshold), nil
}

// Optimal computes a frontier and picks one point by target return, target
// risk or maximum Sharpe ratio.
func (s *Service) Optimal(mode Mode, caps CapsTemplate, targetReturn, targetRisk *float64, riskFreeRate float64) (*OptimalPortfolio, error) {
	frontier, err := s.Frontier(mode, caps, nil, 0)
	if err != nil {
		return nil, err
	}
	if riskFreeRate == 0 {
		riskFreeRate = s.opts.RiskFreeRate
	}
	return FindOptimalPortfolio(frontier, targetReturn, targetRisk, riskFreeRate)
}

// UniverseInfo lists the optimizable asset classes.
type UniverseInfo struct {
	Assets []string `json:"assets"`
	Count  int      `json:"count"`
}

// Assets lists the CMA asset classes available for optimization.
func (s *Service) Assets() (*UniverseInfo, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ds.CMA))
	for i, a := range ds.CMA {
		names[i] = a.Name
	}
	return &UniverseInfo{Assets: names, Count: len(names)}, nil
}
