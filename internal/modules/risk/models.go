package risk

import "errors"

// Sentinel errors surfaced by the attribution engine.
var (
	ErrInsufficientData = errors.New("insufficient overlapping observations")
	ErrNoOverlap        = errors.New("no overlap between weights and return columns")
	ErrInvalidWeights   = errors.New("weights must sum to a positive value")
)

// ContributionResult holds marginal and percentage contributions to risk.
type ContributionResult struct {
	PCTR                   map[string]float64 `json:"pctr"`
	MCTR                   map[string]float64 `json:"mctr"`
	Weights                map[string]float64 `json:"weights"`
	PortfolioVol           float64            `json:"portfolio_vol"`
	PortfolioVolAnnualized float64            `json:"portfolio_vol_annualized"`
}

// TrackingErrorResult holds annualized tracking error and its decomposition
// over active weights.
type TrackingErrorResult struct {
	TrackingError   float64            `json:"tracking_error"`
	ActiveWeights   map[string]float64 `json:"active_weights"`
	TEContributions map[string]float64 `json:"te_contributions"`
}

// PCTEResult extends the tracking-error report with contributions normalized
// by the sum of absolute contributions.
type PCTEResult struct {
	TrackingError        float64            `json:"tracking_error"`
	TrackingErrorMonthly float64            `json:"tracking_error_monthly"`
	PCTE                 map[string]float64 `json:"pcte"`
	MCTE                 map[string]float64 `json:"mcte"`
	ActiveWeights        map[string]float64 `json:"active_weights"`
}

// RiskDecomposition splits portfolio risk into systematic and specific parts.
// All risk figures are annualized.
type RiskDecomposition struct {
	SystematicRisk      float64            `json:"systematic_risk"`
	SpecificRisk        float64            `json:"specific_risk"`
	TotalRisk           float64            `json:"total_risk"`
	SystematicPct       float64            `json:"systematic_pct"`
	SpecificPct         float64            `json:"specific_pct"`
	FactorContributions map[string]float64 `json:"factor_contributions"`
	FactorExposures     map[string]float64 `json:"portfolio_factor_exposures"`
}

// FullDecompositionResult runs portfolio, benchmark and active weights through
// the same factor model.
type FullDecompositionResult struct {
	Portfolio           *RiskDecomposition `json:"portfolio"`
	Benchmark           *RiskDecomposition `json:"benchmark"`
	Active              *RiskDecomposition `json:"active"`
	FactorContributions map[string]float64 `json:"factor_contributions"`
}

// DiversificationResult describes how much diversification the portfolio
// captures relative to its undiversified volatility.
type DiversificationResult struct {
	DiversificationRatio      float64 `json:"diversification_ratio"`
	DiversificationBenefitPct float64 `json:"diversification_benefit_pct"`
	WeightedAvgCorrelation    float64 `json:"weighted_avg_correlation"`
	PortfolioVolAnnualized    float64 `json:"portfolio_vol_annualized"`
	WeightedAvgVolAnnualized  float64 `json:"weighted_avg_vol_annualized"`
}

// VaRCVaRResult holds empirical value-at-risk figures, both per-period and
// annualized.
type VaRCVaRResult struct {
	VaR            float64 `json:"var"`
	CVaR           float64 `json:"cvar"`
	VaRAnnualized  float64 `json:"var_annualized"`
	CVaRAnnualized float64 `json:"cvar_annualized"`
	Observations   int     `json:"observations"`
}

// PerformanceStats summarizes a realized return series.
type PerformanceStats struct {
	CAGR        float64 `json:"cagr"`
	Volatility  float64 `json:"volatility"`
	Sharpe      float64 `json:"sharpe"`
	MaxDrawdown float64 `json:"max_drawdown"`
	TotalReturn float64 `json:"total_return"`
}

// SegmentTrackingErrorResult reports tracking error by allocation tier.
type SegmentTrackingErrorResult struct {
	TotalTrackingError     float64 `json:"total_tracking_error"`
	GrowthTrackingError    float64 `json:"growth_tracking_error"`
	StabilityTrackingError float64 `json:"stability_tracking_error"`
	DiversificationBenefit float64 `json:"diversification_benefit"`
	GrowthAssetsCount      int     `json:"growth_assets_count"`
	StabilityAssetsCount   int     `json:"stability_assets_count"`
	GrowthWeight           float64 `json:"growth_weight"`
	StabilityWeight        float64 `json:"stability_weight"`
}
