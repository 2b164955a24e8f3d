package formulas

// HistoricalVaR returns the empirical value-at-risk of a return series at the
// given confidence level: the (1-confidence) percentile of the observed
// returns. Negative values are losses.
func HistoricalVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	return Percentile(returns, (1-confidence)*100)
}

// HistoricalCVaR returns the empirical conditional value-at-risk: the mean of
// all returns at or below the VaR threshold.
func HistoricalCVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	threshold := HistoricalVaR(returns, confidence)
	sum := 0.0
	count := 0
	for _, r := range returns {
		if r <= threshold {
			sum += r
			count++
		}
	}
	if count == 0 {
		return threshold
	}
	return sum / float64(count)
}
