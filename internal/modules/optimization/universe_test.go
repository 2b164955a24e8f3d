package optimization

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/riskapi/internal/domain"
)

func sampleCMA() []domain.AssetAssumption {
	return []domain.AssetAssumption{
		{Name: "GLOBAL CASH", Return: 0.025, Risk: 0.01, Bucket: domain.BucketStability},
		{Name: "GLOBAL AGGREGATE", Return: 0.04, Risk: 0.05, Bucket: domain.BucketStability},
		{Name: "HIGH YIELD", Return: 0.055, Risk: 0.08, Bucket: domain.BucketDiversified},
		{Name: "GLOBAL", Return: 0.08, Risk: 0.16, Bucket: domain.BucketGrowth},
		{Name: "EM", Return: 0.09, Risk: 0.20, Bucket: domain.BucketGrowth},
		{Name: "PRIVATE EQUITY", Return: 0.11, Risk: 0.22, Bucket: domain.BucketGrowth, CapMax: 0.4},
		{Name: "VENTURE", Return: 0.13, Risk: 0.30, Bucket: domain.BucketGrowth},
		{Name: "BROKEN RISK", Return: 0.05, Risk: 0},
		{Name: "BROKEN RETURN", Return: math.NaN(), Risk: 0.10},
	}
}

func TestBuildUniverseCore(t *testing.T) {
	universe := BuildUniverse(ModeCore, sampleCMA(), DefaultUniverseConfig())

	names := assetNames(universe)
	assert.ElementsMatch(t, []string{"GLOBAL CASH", "GLOBAL AGGREGATE", "HIGH YIELD", "GLOBAL", "EM"}, names)
}

func TestBuildUniverseCorePrivate(t *testing.T) {
	universe := BuildUniverse(ModeCorePrivate, sampleCMA(), DefaultUniverseConfig())

	names := assetNames(universe)
	assert.Contains(t, names, "PRIVATE EQUITY")
	assert.NotContains(t, names, "VENTURE") // special, not core or private
}

func TestBuildUniverseUnconstrainedDropsInvalid(t *testing.T) {
	universe := BuildUniverse(ModeUnconstrained, sampleCMA(), DefaultUniverseConfig())

	names := assetNames(universe)
	assert.Contains(t, names, "VENTURE")
	assert.NotContains(t, names, "BROKEN RISK")
	assert.NotContains(t, names, "BROKEN RETURN")
}

func TestSelectAssetsIsCaseInsensitive(t *testing.T) {
	selected := SelectAssets(sampleCMA(), []string{"global", "em", "broken risk"})

	assert.ElementsMatch(t, []string{"GLOBAL", "EM"}, assetNames(selected))
}

func TestCapsFromTemplate(t *testing.T) {
	assets := []domain.AssetAssumption{
		{Name: "A", Risk: 0.1, Return: 0.05},              // no cap -> 1.0
		{Name: "B", Risk: 0.1, Return: 0.05, CapMax: 0.4}, // own cap
		{Name: "C", Risk: 0.1, Return: 0.05, CapMax: 1.5}, // clipped to 1.0
	}

	std := CapsFromTemplate(assets, CapsStandard)
	assert.Equal(t, 1.0, std[0][1])
	assert.Equal(t, 0.4, std[1][1])
	assert.Equal(t, 1.0, std[2][1])

	tight := CapsFromTemplate(assets, CapsTight)
	for _, b := range tight {
		assert.LessOrEqual(t, b[1], 0.25)
		assert.Zero(t, b[0])
	}
}

func TestSpecialCapsAndCombine(t *testing.T) {
	assets := []domain.AssetAssumption{
		{Name: "GLOBAL", Risk: 0.16, Return: 0.08},
		{Name: "VENTURE", Risk: 0.30, Return: 0.13},
	}

	special := SpecialCaps(assets, DefaultUniverseConfig())
	assert.Equal(t, 1.0, special[0][1])
	assert.Equal(t, 0.25, special[1][1])

	// Stricter bound wins when combined with the template.
	combined := CombineBounds(CapsFromTemplate(assets, CapsStandard), special)
	assert.Equal(t, 1.0, combined[0][1])
	assert.Equal(t, 0.25, combined[1][1])
}

func TestBuildBucketEnv(t *testing.T) {
	assets := []domain.AssetAssumption{
		{Name: "CASH", Bucket: domain.BucketStability},
		{Name: "HY", Bucket: domain.BucketDiversified},
		{Name: "EQ", Bucket: domain.BucketGrowth},
		{Name: "UNLABELED"}, // counts as stability
	}

	env := BuildBucketEnv(assets)
	require.Len(t, env, 3)

	assert.Equal(t, []int{0, 3}, env[0].Indices)
	assert.Equal(t, []int{1}, env[1].Indices)
	assert.Equal(t, []int{2}, env[2].Indices)
	for _, bucket := range env {
		assert.Zero(t, bucket.Lo)
		assert.Equal(t, 1.0, bucket.Hi)
	}
}

func TestBuildBucketEnvSkipsEmptyBuckets(t *testing.T) {
	assets := []domain.AssetAssumption{
		{Name: "EQ1", Bucket: domain.BucketGrowth},
		{Name: "EQ2", Bucket: domain.BucketGrowth},
	}

	env := BuildBucketEnv(assets)
	require.Len(t, env, 1)
	assert.Equal(t, []int{0, 1}, env[0].Indices)
}

func assetNames(assets []domain.AssetAssumption) []string {
	names := make([]string, len(assets))
	for i, a := range assets {
		names[i] = a.Name
	}
	return names
}
