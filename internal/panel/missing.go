package panel

import "math"

// Missing returns the missing-value marker. Cells without an observation
// carry IEEE NaN, which propagates through arithmetic instead of silently
// defaulting to zero.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether v is the missing-value marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// missingColumn allocates a column of n missing cells.
func missingColumn(n int) []float64 {
	col := make([]float64, n)
	for i := range col {
		col[i] = math.NaN()
	}
	return col
}
