// Package temporal implements per-entity lag and rolling-window operators
// over a panel table. Both come in two window semantics: by row position
// (the legacy behavior, which misbehaves across gaps in an entity's
// history) and by calendar period (gap-strict, the default).
package temporal

import (
	"fmt"

	"github.com/aepodrez/crosssignals/internal/panel"
)

// Mode selects how a lag or window counts backwards.
type Mode int

const (
	// ByPeriod locates the row exactly k calendar months earlier, missing
	// if that period is absent from the entity's history.
	ByPeriod Mode = iota
	// ByRow takes the k-th prior row regardless of calendar gaps.
	ByRow
)

// ParseMode maps the config spelling to a window mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "periods":
		return ByPeriod, nil
	case "rows":
		return ByRow, nil
	default:
		return 0, fmt.Errorf("unknown window mode %q", s)
	}
}

func (m Mode) String() string {
	if m == ByRow {
		return "rows"
	}
	return "periods"
}

// Lag returns, aligned with the table's row order, the field's value k
// steps earlier within each entity's series. Negative k is a lead; leads
// look into the future and must be an explicit, flagged choice upstream.
func Lag(t *panel.Table, field string, k int, mode Mode) ([]float64, error) {
	out := newMissing(t.Len())
	if err := LagSpans(t, field, k, mode, t.EntitySpans(), out); err != nil {
		return nil, err
	}
	return out, nil
}

// LagSpans computes the lag for a subset of entity spans, writing into the
// table-aligned out slice. Spans are disjoint, so concurrent callers on
// different spans need no locking.
func LagSpans(t *panel.Table, field string, k int, mode Mode, spans []panel.EntitySpan, out []float64) error {
	col, err := t.Column(field)
	if err != nil {
		return err
	}
	for _, span := range spans {
		s := t.Series(span)
		lagSeries(s, col[span.Start:span.End], k, mode, out[span.Start:span.End])
	}
	return nil
}

// newMissing allocates a table-aligned all-missing column.
func newMissing(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = panel.Missing()
	}
	return out
}

func lagSeries(s *panel.EntitySeries, vals []float64, k int, mode Mode, out []float64) {
	switch mode {
	case ByRow:
		for i := range vals {
			j := i - k
			if j >= 0 && j < len(vals) {
				out[i] = vals[j]
			}
		}
	case ByPeriod:
		// Rows are period-sorted, so the exact prior period is found by
		// binary search within the entity's run.
		for i := range vals {
			want := s.Period(i).Add(-k)
			if j, ok := findPeriod(s, want); ok {
				out[i] = vals[j]
			}
		}
	}
}

// findPeriod binary-searches the series for an exact period match.
func findPeriod(s *panel.EntitySeries, want panel.Period) (int, bool) {
	lo, hi := 0, s.Len()
	for lo < hi {
		mid := (lo + hi) / 2
		if s.Period(mid) < want {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < s.Len() && s.Period(lo) == want {
		return lo, true
	}
	return 0, false
}

// CompoundReturn computes the cumulative compound return over lags
// fromLag..toLag of a return field: prod(1+ret_lag_j) - 1. Any missing lag
// makes the result missing; signals that want gaps treated as zero return
// fill the input explicitly at load time.
func CompoundReturn(t *panel.Table, field string, fromLag, toLag int, mode Mode) ([]float64, error) {
	out := newMissing(t.Len())
	if err := CompoundReturnSpans(t, field, fromLag, toLag, mode, t.EntitySpans(), out); err != nil {
		return nil, err
	}
	return out, nil
}

// CompoundReturnSpans is the span-scoped form of CompoundReturn; see LagSpans.
func CompoundReturnSpans(t *panel.Table, field string, fromLag, toLag int, mode Mode, spans []panel.EntitySpan, out []float64) error {
	if fromLag > toLag {
		return fmt.Errorf("compound return: from_lag %d > to_lag %d", fromLag, toLag)
	}
	col, err := t.Column(field)
	if err != nil {
		return err
	}
	lagged := make([]float64, 0)
	for _, span := range spans {
		s := t.Series(span)
		vals := col[span.Start:span.End]
		n := span.End - span.Start
		if cap(lagged) < n {
			lagged = make([]float64, n)
		}
		lagged = lagged[:n]
		acc := make([]float64, n)
		for i := range acc {
			acc[i] = 1
		}
		ok := make([]bool, n)
		for i := range ok {
			ok[i] = true
		}
		for k := fromLag; k <= toLag; k++ {
			for i := range lagged {
				lagged[i] = panel.Missing()
			}
			lagSeries(s, vals, k, mode, lagged)
			for i := range acc {
				if panel.IsMissing(lagged[i]) {
					ok[i] = false
					continue
				}
				acc[i] *= 1 + lagged[i]
			}
		}
		for i := range acc {
			if ok[i] {
				out[span.Start+i] = acc[i] - 1
			}
		}
	}
	return nil
}
