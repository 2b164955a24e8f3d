package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoricalVaR(t *testing.T) {
	tests := []struct {
		name       string
		returns    []float64
		confidence float64
		want       float64
		tolerance  float64
	}{
		{
			name:       "empty returns",
			returns:    []float64{},
			confidence: 0.95,
			want:       0,
		},
		{
			name:       "95 percent on ten observations",
			returns:    []float64{-0.10, -0.05, -0.02, 0.0, 0.02, 0.05, 0.10, 0.15, 0.20, 0.25},
			confidence: 0.95,
			want:       -0.0775, // 5th percentile, interpolated
			tolerance:  1e-9,
		},
		{
			name:       "all identical",
			returns:    makeReturns(0.01, 20),
			confidence: 0.95,
			want:       0.01,
			tolerance:  1e-12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HistoricalVaR(tt.returns, tt.confidence)
			assert.InDelta(t, tt.want, got, tt.tolerance+1e-12)
		})
	}
}

func TestHistoricalCVaR(t *testing.T) {
	returns := []float64{-0.20, -0.15, -0.10, -0.05, -0.02}

	cvar := HistoricalCVaR(returns, 0.95)
	valueAtRisk := HistoricalVaR(returns, 0.95)

	// CVaR averages the tail, so it can never be better than VaR.
	assert.LessOrEqual(t, cvar, valueAtRisk)
	assert.InDelta(t, -0.20, cvar, 0.02)
}

func TestHistoricalCVaRMixed(t *testing.T) {
	returns := []float64{-0.30, -0.20, -0.10, 0.0, 0.10, 0.20, 0.30, 0.40, 0.50, 0.60}

	cvar := HistoricalCVaR(returns, 0.90)
	assert.Less(t, cvar, 0.0)
	assert.LessOrEqual(t, cvar, HistoricalVaR(returns, 0.90))
}
