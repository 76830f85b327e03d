// Package crosssection implements per-period operators: quantile bucketing,
// peer-group adjustment and winsorization. Each period's statistic is
// computed from that period's cross-section alone; nothing leaks across
// periods.
package crosssection

import (
	"fmt"
	"sort"

	"github.com/aepodrez/crosssignals/internal/panel"
)

// QuantileBucket ranks each period's entities by the field ascending and
// assigns 1-indexed buckets of near-equal count, aligned with the table's
// row order. Ties break stably by entity id; a run of equal values that
// straddles a boundary is split by that order, so every valid entity gets
// exactly one bucket. Rows with a missing field get a missing bucket.
func QuantileBucket(t *panel.Table, field string, nBuckets int) ([]float64, error) {
	if nBuckets < 2 {
		return nil, fmt.Errorf("quantile bucket: need at least 2 buckets, got %d", nBuckets)
	}
	col, err := t.Column(field)
	if err != nil {
		return nil, err
	}
	out := missing(t.Len())
	for _, period := range t.Periods() {
		rows := t.CrossSection(period)
		valid := rows[:0:0]
		for _, r := range rows {
			if !panel.IsMissing(col[r]) {
				valid = append(valid, r)
			}
		}
		if len(valid) == 0 {
			continue
		}
		// CrossSection rows arrive in entity order, so a stable sort on
		// value alone keeps the entity-id tie-break.
		sort.SliceStable(valid, func(a, b int) bool { return col[valid[a]] < col[valid[b]] })
		m := len(valid)
		for rank, r := range valid {
			out[r] = float64(rank*nBuckets/m + 1)
		}
	}
	return out, nil
}

func missing(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = panel.Missing()
	}
	return s
}
