package temporal

import (
	"fmt"
	"math"

	"github.com/aepodrez/crosssignals/internal/panel"
)

// Stat selects the rolling aggregate.
type Stat int

const (
	Sum Stat = iota
	Mean
	Std
	Count
)

// ParseStat maps the config spelling to a rolling aggregate.
func ParseStat(s string) (Stat, error) {
	switch s {
	case "sum":
		return Sum, nil
	case "mean":
		return Mean, nil
	case "std":
		return Std, nil
	case "count":
		return Count, nil
	default:
		return 0, fmt.Errorf("unknown rolling stat %q", s)
	}
}

// Rolling computes a trailing-window aggregate of the field per entity,
// aligned with the table's row order. The window ends at the reference row
// inclusive and spans W steps in the given mode. Cells with fewer than
// minValid non-missing observations in the window are missing. Std is the
// sample standard deviation (N-1 divisor); signals' minimum-count choices
// assume that convention.
func Rolling(t *panel.Table, field string, window, minValid int, stat Stat, mode Mode) ([]float64, error) {
	out := newMissing(t.Len())
	if err := RollingSpans(t, field, window, minValid, stat, mode, t.EntitySpans(), out); err != nil {
		return nil, err
	}
	return out, nil
}

// RollingSpans is the span-scoped form of Rolling; see LagSpans.
func RollingSpans(t *panel.Table, field string, window, minValid int, stat Stat, mode Mode, spans []panel.EntitySpan, out []float64) error {
	if window <= 0 {
		return fmt.Errorf("rolling: window must be positive, got %d", window)
	}
	if minValid <= 0 || minValid > window {
		return fmt.Errorf("rolling: min_valid %d out of range for window %d", minValid, window)
	}
	col, err := t.Column(field)
	if err != nil {
		return err
	}
	for _, span := range spans {
		s := t.Series(span)
		rollSeries(s, col[span.Start:span.End], window, minValid, stat, mode, out[span.Start:span.End])
	}
	return nil
}

// rollSeries slides an accumulator of running sums across one entity's
// series: O(1) per step in both modes.
func rollSeries(s *panel.EntitySeries, vals []float64, window, minValid int, stat Stat, mode Mode, out []float64) {
	var sum, sumSq float64
	valid := 0
	left := 0 // first series position inside the window

	add := func(v float64) {
		if !panel.IsMissing(v) {
			sum += v
			sumSq += v * v
			valid++
		}
	}
	drop := func(v float64) {
		if !panel.IsMissing(v) {
			sum -= v
			sumSq -= v * v
			valid--
		}
	}

	for i := range vals {
		add(vals[i])
		switch mode {
		case ByRow:
			for i-left+1 > window {
				drop(vals[left])
				left++
			}
		case ByPeriod:
			// Window covers periods (p-W, p]; rows at or before p-W leave.
			cutoff := s.Period(i).Add(-window)
			for left <= i && s.Period(left) <= cutoff {
				drop(vals[left])
				left++
			}
		}
		out[i] = aggregate(stat, sum, sumSq, valid, minValid)
	}
}

func aggregate(stat Stat, sum, sumSq float64, valid, minValid int) float64 {
	if valid < minValid {
		return panel.Missing()
	}
	switch stat {
	case Sum:
		return sum
	case Mean:
		return sum / float64(valid)
	case Std:
		if valid < 2 {
			return panel.Missing()
		}
		variance := (sumSq - sum*sum/float64(valid)) / float64(valid-1)
		if variance < 0 {
			variance = 0 // running-sum rounding can dip just below zero
		}
		return math.Sqrt(variance)
	case Count:
		return float64(valid)
	}
	return panel.Missing()
}
