package domain

// Bucket labels used by the capital-market-assumptions table.
const (
	BucketStability   = "STABILITY"
	BucketDiversified = "DIVERSIFIED"
	BucketGrowth      = "GROWTH"
)

// AssetAssumption holds the forward-looking assumptions for one asset class:
// expected annual return, annual volatility, an optional position cap and the
// allocation bucket it belongs to.
type AssetAssumption struct {
	Name   string  `json:"name"`
	Return float64 `json:"expected_return"`
	Risk   float64 `json:"expected_risk"`
	CapMax float64 `json:"cap_max"`
	Bucket string  `json:"bucket"`
}

// Holding is a current/proposed allocation pair for one asset, used by the
// inefficiency screen.
type Holding struct {
	Asset    string  `json:"asset"`
	Current  float64 `json:"current"`
	Proposed float64 `json:"proposed"`
}

// NormalizeWeights scales a weight map so the values sum to 1. Returns false
// when the sum is not strictly positive.
func NormalizeWeights(weights map[string]float64) (map[string]float64, bool) {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return nil, false
	}
	out := make(map[string]float64, len(weights))
	for k, w := range weights {
		out[k] = w / total
	}
	return out, true
}
