// Package pattern extracts normalized, forward-outcome-labeled sliding
// windows from candle history.
package pattern

// MinMaxNormalize scales values to [0, 1] using the extremes of this slice
// only, never a global range: every window is normalized against itself so
// shapes are comparable across price levels. A constant slice maps to all
// zeros rather than dividing by zero.
func MinMaxNormalize(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}

	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	rangeVal := max - min
	if rangeVal == 0 {
		rangeVal = 1
	}

	result := make([]float64, len(values))
	for i, v := range values {
		result[i] = (v - min) / rangeVal
	}

	return result
}
