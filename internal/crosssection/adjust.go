package crosssection

import (
	"fmt"
	"sort"

	"github.com/aepodrez/crosssignals/internal/panel"
)

// GroupStat selects the peer-group statistic for GroupAdjust.
type GroupStat int

const (
	GroupMean GroupStat = iota
	GroupMedian
)

// ParseGroupStat maps the config spelling to a group statistic.
func ParseGroupStat(s string) (GroupStat, error) {
	switch s {
	case "", "mean":
		return GroupMean, nil
	case "median":
		return GroupMedian, nil
	default:
		return 0, fmt.Errorf("unknown group stat %q", s)
	}
}

// GroupAdjust subtracts, within each period, the group's mean or median of
// the field from each member's value. Groups are keyed by the groupField's
// value at that row (an industry code, say). Rows with a missing field or
// missing group key yield a missing result.
func GroupAdjust(t *panel.Table, field, groupField string, stat GroupStat) ([]float64, error) {
	col, err := t.Column(field)
	if err != nil {
		return nil, err
	}
	groups, err := t.Column(groupField)
	if err != nil {
		return nil, err
	}
	out := missing(t.Len())
	for _, period := range t.Periods() {
		byGroup := make(map[float64][]int)
		for _, r := range t.CrossSection(period) {
			if panel.IsMissing(col[r]) || panel.IsMissing(groups[r]) {
				continue
			}
			byGroup[groups[r]] = append(byGroup[groups[r]], r)
		}
		for _, rows := range byGroup {
			center := groupCenter(col, rows, stat)
			for _, r := range rows {
				out[r] = col[r] - center
			}
		}
	}
	return out, nil
}

func groupCenter(col []float64, rows []int, stat GroupStat) float64 {
	switch stat {
	case GroupMedian:
		vals := make([]float64, len(rows))
		for i, r := range rows {
			vals[i] = col[r]
		}
		sort.Float64s(vals)
		mid := len(vals) / 2
		if len(vals)%2 == 1 {
			return vals[mid]
		}
		return (vals[mid-1] + vals[mid]) / 2
	default:
		sum := 0.0
		for _, r := range rows {
			sum += col[r]
		}
		return sum / float64(len(rows))
	}
}
