package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntersectDates(t *testing.T) {
	a := NewReturnTable(
		[]string{"2024-01", "2024-02", "2024-03"},
		[]string{"X"},
		map[string][]float64{"X": {0.01, 0.02, 0.03}},
	)
	b := NewReturnTable(
		[]string{"2024-02", "2024-03", "2024-04"},
		[]string{"Y"},
		map[string][]float64{"Y": {0.05, 0.06, 0.07}},
	)

	left, right := a.IntersectDates(b)

	assert.Equal(t, []string{"2024-02", "2024-03"}, left.Dates)
	assert.Equal(t, left.Dates, right.Dates)
	assert.Equal(t, []float64{0.02, 0.03}, left.Column("X"))
	assert.Equal(t, []float64{0.05, 0.06}, right.Column("Y"))
}

func TestIntersectDatesEmpty(t *testing.T) {
	a := NewReturnTable([]string{"2024-01"}, []string{"X"}, map[string][]float64{"X": {0.01}})
	b := NewReturnTable([]string{"2025-01"}, []string{"Y"}, map[string][]float64{"Y": {0.02}})

	left, _ := a.IntersectDates(b)
	assert.Equal(t, 0, left.NumPeriods())
}

func TestPortfolioReturnsSkipsNaN(t *testing.T) {
	table := NewReturnTable(
		[]string{"2024-01", "2024-02"},
		[]string{"X", "Y"},
		map[string][]float64{
			"X": {0.10, math.NaN()},
			"Y": {0.02, 0.04},
		},
	)

	got := table.PortfolioReturns(map[string]float64{"X": 0.5, "Y": 0.5, "MISSING": 0.5})

	assert.InDelta(t, 0.06, got[0], 1e-12)
	assert.InDelta(t, 0.02, got[1], 1e-12)
}

func TestValidRows(t *testing.T) {
	table := NewReturnTable(
		[]string{"2024-01", "2024-02", "2024-03"},
		[]string{"X", "Y"},
		map[string][]float64{
			"X": {0.1, math.NaN(), 0.3},
			"Y": {0.2, 0.2, 0.2},
		},
	)

	assert.Equal(t, []int{0, 2}, table.ValidRows([]string{"X", "Y"}))
	assert.Empty(t, table.ValidRows([]string{"X", "Z"}))
}

func TestNormalizeWeights(t *testing.T) {
	got, ok := NormalizeWeights(map[string]float64{"A": 2, "B": 6})
	assert.True(t, ok)
	assert.InDelta(t, 0.25, got["A"], 1e-12)
	assert.InDelta(t, 0.75, got["B"], 1e-12)

	_, ok = NormalizeWeights(map[string]float64{"A": 0})
	assert.False(t, ok)
}

func TestNamedMatrixSubmatrix(t *testing.T) {
	m := NewNamedMatrix([]string{"A", "B"})
	m.Set("A", "A", 1)
	m.Set("B", "B", 1)
	m.Set("A", "B", 0.3)
	m.Set("B", "A", 0.3)

	sub := m.Submatrix([]string{"A", "B", "C"}, 0)

	assert.Equal(t, 0.3, sub[0][1])
	assert.Equal(t, 1.0, sub[2][2])
	assert.Equal(t, 0.0, sub[0][2]) // unknown pair filled
}
