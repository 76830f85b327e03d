package crosssection

import (
	"fmt"
	"sort"

	"github.com/aepodrez/crosssignals/internal/panel"
)

// Winsorize clips the field to the [loPct, hiPct] percentile bounds
// computed within each period's cross-section. Percentiles are linearly
// interpolated over the period's sorted valid values. Missing cells stay
// missing; they are clipped by nothing and dropped by nobody here.
func Winsorize(t *panel.Table, field string, loPct, hiPct float64) ([]float64, error) {
	if loPct < 0 || hiPct > 100 || loPct >= hiPct {
		return nil, fmt.Errorf("winsorize: bad percentile bounds [%g, %g]", loPct, hiPct)
	}
	col, err := t.Column(field)
	if err != nil {
		return nil, err
	}
	out := missing(t.Len())
	for _, period := range t.Periods() {
		rows := t.CrossSection(period)
		vals := make([]float64, 0, len(rows))
		for _, r := range rows {
			if !panel.IsMissing(col[r]) {
				vals = append(vals, col[r])
			}
		}
		if len(vals) == 0 {
			continue
		}
		sort.Float64s(vals)
		lo := interpolatePercentile(vals, loPct)
		hi := interpolatePercentile(vals, hiPct)
		for _, r := range rows {
			v := col[r]
			if panel.IsMissing(v) {
				continue
			}
			if v < lo {
				v = lo
			} else if v > hi {
				v = hi
			}
			out[r] = v
		}
	}
	return out, nil
}

// interpolatePercentile computes the p-th percentile of sorted values by
// linear interpolation between the bracketing order statistics.
func interpolatePercentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(pos)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}
