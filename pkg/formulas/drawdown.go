package formulas

// DrawdownMetrics represents drawdown analysis of an equity curve
type DrawdownMetrics struct {
	MaxDrawdown     float64 `json:"max_drawdown"`     // Positive fraction, 0.25 = 25% below peak
	CurrentDrawdown float64 `json:"current_drawdown"` // Current distance below the running peak
	PeakValue       float64 `json:"peak_value"`
	CurrentValue    float64 `json:"current_value"`
}

// CalculateDrawdownMetrics walks the series once tracking the running peak.
// Returns nil for fewer than two points.
func CalculateDrawdownMetrics(values []float64) *DrawdownMetrics {
	if len(values) < 2 {
		return nil
	}

	maxDrawdown := 0.0
	peak := values[0]
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDrawdown {
				maxDrawdown = dd
			}
		}
	}

	current := values[len(values)-1]
	currentDrawdown := 0.0
	if peak > 0 {
		currentDrawdown = (peak - current) / peak
	}

	return &DrawdownMetrics{
		MaxDrawdown:     maxDrawdown,
		CurrentDrawdown: currentDrawdown,
		PeakValue:       peak,
		CurrentValue:    current,
	}
}
