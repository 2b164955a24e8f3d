package optimization

import (
	"math"
	"strings"

	"github.com/quantfolio/riskapi/internal/domain"
)

// UniverseConfig defines the asset-class membership sets used for universe
// selection and the special-asset position limit. The sets compare against
// uppercased asset names.
type UniverseConfig struct {
	Core    map[string]bool
	Private map[string]bool
	Special map[string]bool
}

// DefaultUniverseConfig returns the standard liquid-core / private-markets /
// special-situations membership sets.
func DefaultUniverseConfig() UniverseConfig {
	return UniverseConfig{
		Core: toSet(
			"GLOBAL CASH",
			"GLOBAL GOVERNMENT",
			"GLOBAL AGGREGATE",
			"HIGH YIELD",
			"GOLD",
			"GLOBAL",
			"EM",
		),
		Private: toSet(
			"GLOBAL CASH",
			"GLOBAL GOVERNMENT",
			"PRIVATE DEBT",
			"PRIVATE INFRASTRUCTURE",
			"REAL ESTATE",
			"ABSOLUTE RETURN HS",
			"GROWTH DIRECTIONAL HF",
			"PRIVATE EQUITY",
		),
		Special: toSet(
			"VENTURE",
			"CLO",
			"DEVELOPMENT",
			"SPECIAL SITS",
			"GROWTH",
		),
	}
}

func toSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToUpper(n)] = true
	}
	return set
}

// specialCapLimit is the position ceiling forced onto special assets.
const specialCapLimit = 0.25

// BuildUniverse filters the CMA table down to the assets allowed in the given
// mode. Assets with non-positive risk or a missing expected return are always
// dropped.
func BuildUniverse(mode Mode, cma []domain.AssetAssumption, cfg UniverseConfig) []domain.AssetAssumption {
	var out []domain.AssetAssumption
	for _, asset := range cma {
		name := strings.ToUpper(asset.Name)
		switch mode {
		case ModeCore:
			if !cfg.Core[name] {
				continue
			}
		case ModeCorePrivate:
			if !cfg.Core[name] && !cfg.Private[name] {
				continue
			}
		}
		if !validAsset(asset) {
			continue
		}
		out = append(out, asset)
	}
	return out
}

// SelectAssets picks an explicit custom universe out of the CMA table,
// preserving table order and dropping invalid rows.
func SelectAssets(cma []domain.AssetAssumption, names []string) []domain.AssetAssumption {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.ToUpper(n)] = true
	}
	var out []domain.AssetAssumption
	for _, asset := range cma {
		if wanted[strings.ToUpper(asset.Name)] && validAsset(asset) {
			out = append(out, asset)
		}
	}
	return out
}

func validAsset(asset domain.AssetAssumption) bool {
	return asset.Risk > 0 && !math.IsNaN(asset.Return) && !math.IsNaN(asset.Risk)
}

// CapsFromTemplate builds per-asset (lo, hi) bounds from each asset's cap and
// the template ceiling: tight caps everything at 0.25, loose and std allow up
// to the asset's own cap (default 1.0).
func CapsFromTemplate(assets []domain.AssetAssumption, template CapsTemplate) [][2]float64 {
	bounds := make([][2]float64, len(assets))
	for i, asset := range assets {
		cap := asset.CapMax
		if cap <= 0 {
			cap = 1.0
		}
		cap = math.Min(math.Max(cap, 0), 1)
		if template == CapsTight {
			cap = math.Min(cap, 0.25)
		}
		bounds[i] = [2]float64{0, cap}
	}
	return bounds
}

// SpecialCaps limits special (illiquid) assets to specialCapLimit regardless
// of template.
func SpecialCaps(assets []domain.AssetAssumption, cfg UniverseConfig) [][2]float64 {
	bounds := make([][2]float64, len(assets))
	for i, asset := range assets {
		if cfg.Special[strings.ToUpper(asset.Name)] {
			bounds[i] = [2]float64{0, specialCapLimit}
		} else {
			bounds[i] = [2]float64{0, 1}
		}
	}
	return bounds
}

// CombineBounds merges two bound sets, the stricter upper bound winning.
func CombineBounds(a, b [][2]float64) [][2]float64 {
	out := make([][2]float64, len(a))
	for i := range a {
		out[i] = [2]float64{0, math.Min(a[i][1], b[i][1])}
	}
	return out
}

// BuildBucketEnv groups universe indices by allocation bucket. Each present
// bucket gets a [0, 1] sum constraint; assets without a DIVERSIFIED or GROWTH
// label count as stability.
func BuildBucketEnv(assets []domain.AssetAssumption) []BucketConstraint {
	var stability, diversified, growth []int
	for i, asset := range assets {
		switch strings.ToUpper(strings.TrimSpace(asset.Bucket)) {
		case domain.BucketDiversified:
			diversified = append(diversified, i)
		case domain.BucketGrowth:
			growth = append(growth, i)
		default:
			stability = append(stability, i)
		}
	}

	var env []BucketConstraint
	for _, idx := range [][]int{stability, diversified, growth} {
		if len(idx) > 0 {
			env = append(env, BucketConstraint{Indices: idx, Lo: 0, Hi: 1})
		}
	}
	return env
}
