package risk

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantfolio/riskapi/internal/domain"
)

// makeTable builds a deterministic return table with n periods.
func makeTable(t *testing.T, nPeriods int, seed int64, assets ...string) *domain.ReturnTable {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))

	dates := make([]string, nPeriods)
	for i := range dates {
		dates[i] = dateLabel(i)
	}
	data := make(map[string][]float64, len(assets))
	for _, a := range assets {
		col := make([]float64, nPeriods)
		for i := range col {
			col[i] = rng.NormFloat64() * 0.04
		}
		data[a] = col
	}
	return domain.NewReturnTable(dates, assets, data)
}

func dateLabel(i int) string {
	return fmt.Sprintf("%04d-%02d", 2015+i/12, i%12+1)
}

func TestEWMAFallsBackBelowMinPeriods(t *testing.T) {
	table := makeTable(t, 8, 1, "A", "B")

	ewma := EWMACovariance(table, 0.94, 12)
	simple := SimpleCovariance(table)

	assert.Equal(t, simple, ewma)
}

func TestEWMAConvergesToSimpleAsDecayApproachesOne(t *testing.T) {
	table := makeTable(t, 240, 2, "A", "B")

	ewma := EWMACovariance(table, 0.99999, 12)
	simple := SimpleCovariance(table)

	for i := range ewma {
		for j := range ewma[i] {
			tol := 0.05*math.Abs(simple[i][j]) + 1e-7
			assert.InDelta(t, simple[i][j], ewma[i][j], tol)
		}
	}
}

func TestEWMARecentObservationsDominate(t *testing.T) {
	// Quiet history followed by a volatile recent stretch: EWMA variance
	// should land well above the sample variance.
	nPeriods := 120
	dates := make([]string, nPeriods)
	col := make([]float64, nPeriods)
	for i := range col {
		dates[i] = dateLabel(i)
		if i < 100 {
			col[i] = 0.001 * math.Pow(-1, float64(i))
		} else {
			col[i] = 0.08 * math.Pow(-1, float64(i))
		}
	}
	table := domain.NewReturnTable(dates, []string{"A"}, map[string][]float64{"A": col})

	ewma := EWMACovariance(table, 0.94, 12)
	simple := SimpleCovariance(table)

	assert.Greater(t, ewma[0][0], simple[0][0])
}

func TestShrinkageAlphaOneCollapsesToTarget(t *testing.T) {
	table := makeTable(t, 60, 3, "A", "B", "C")
	ewma := EWMACovariance(table, 0.94, 12)

	diag := ShrinkageCovariance(table, 0.94, 12, ShrinkTargetDiagonal, 1.0)
	for i := range diag {
		for j := range diag[i] {
			if i == j {
				assert.InDelta(t, ewma[i][i], diag[i][j], 1e-12)
			} else {
				assert.Zero(t, diag[i][j])
			}
		}
	}

	identity := ShrinkageCovariance(table, 0.94, 12, ShrinkTargetIdentity, 1.0)
	avgVar := (ewma[0][0] + ewma[1][1] + ewma[2][2]) / 3
	for i := range identity {
		assert.InDelta(t, avgVar, identity[i][i], 1e-12)
	}
}

func TestShrinkageAlphaZeroIsEWMA(t *testing.T) {
	table := makeTable(t, 60, 4, "A", "B")

	got := ShrinkageCovariance(table, 0.94, 12, ShrinkTargetDiagonal, 0)
	want := EWMACovariance(table, 0.94, 12)

	for i := range want {
		for j := range want[i] {
			assert.InDelta(t, want[i][j], got[i][j], 1e-12)
		}
	}
}

func TestShrinkageClampsAlpha(t *testing.T) {
	table := makeTable(t, 60, 5, "A", "B")

	clamped := ShrinkageCovariance(table, 0.94, 12, ShrinkTargetDiagonal, 2.5)
	atOne := ShrinkageCovariance(table, 0.94, 12, ShrinkTargetDiagonal, 1.0)

	assert.Equal(t, atOne, clamped)
}

func TestSimpleCovarianceHandlesGaps(t *testing.T) {
	dates := []string{"2024-01", "2024-02", "2024-03", "2024-04"}
	table := domain.NewReturnTable(dates, []string{"A", "B"}, map[string][]float64{
		"A": {0.01, math.NaN(), 0.03, -0.01},
		"B": {0.02, 0.01, math.NaN(), 0.00},
	})

	cov := SimpleCovariance(table)

	// Pairwise entries use only the two common observations.
	assert.False(t, math.IsNaN(cov[0][1]))
	assert.InDelta(t, cov[0][1], cov[1][0], 1e-15)
}
