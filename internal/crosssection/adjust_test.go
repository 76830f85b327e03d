package crosssection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aepodrez/crosssignals/internal/panel"
)

func groupedTable(t *testing.T) *panel.Table {
	t.Helper()
	tbl := panel.NewTable("master", "mom", "sic")
	p := panel.NewPeriod(2020, 6)
	rows := []struct {
		entity panel.EntityID
		mom    float64
		sic    float64
	}{
		{"A", 0.10, 10},
		{"B", 0.20, 10},
		{"C", 0.30, 10},
		{"D", -0.10, 20},
		{"E", 0.10, 20},
	}
	for _, r := range rows {
		require.NoError(t, tbl.AddRow(r.entity, p, r.mom, r.sic))
	}
	return tbl
}

func TestGroupAdjustMeanSumsToZero(t *testing.T) {
	tbl := groupedTable(t)
	out, err := GroupAdjust(tbl, "mom", "sic", GroupMean)
	require.NoError(t, err)

	// group 10 mean is 0.20, group 20 mean is 0.00
	assert.InDelta(t, -0.10, out[0], 1e-12)
	assert.InDelta(t, 0.00, out[1], 1e-12)
	assert.InDelta(t, 0.10, out[2], 1e-12)
	assert.InDelta(t, -0.10, out[3], 1e-12)
	assert.InDelta(t, 0.10, out[4], 1e-12)

	// each group's adjusted values sum to zero
	sum10 := out[0] + out[1] + out[2]
	sum20 := out[3] + out[4]
	assert.InDelta(t, 0, sum10, 1e-12)
	assert.InDelta(t, 0, sum20, 1e-12)
}

func TestGroupAdjustMedian(t *testing.T) {
	tbl := groupedTable(t)
	out, err := GroupAdjust(tbl, "mom", "sic", GroupMedian)
	require.NoError(t, err)

	// group 10 median is 0.20; group 20 (even count) averages the middle two
	assert.InDelta(t, -0.10, out[0], 1e-12)
	assert.InDelta(t, 0.10, out[2], 1e-12)
	assert.InDelta(t, -0.10, out[3], 1e-12)
	assert.InDelta(t, 0.10, out[4], 1e-12)
}

func TestGroupAdjustMissingInputs(t *testing.T) {
	tbl := panel.NewTable("master", "mom", "sic")
	p := panel.NewPeriod(2020, 6)
	require.NoError(t, tbl.AddRow("A", p, 0.10, 10))
	require.NoError(t, tbl.AddRow("B", p, panel.Missing(), 10))
	require.NoError(t, tbl.AddRow("C", p, 0.30, panel.Missing()))

	out, err := GroupAdjust(tbl, "mom", "sic", GroupMean)
	require.NoError(t, err)

	// A is alone in its group once B drops out
	assert.InDelta(t, 0, out[0], 1e-12)
	assert.True(t, panel.IsMissing(out[1]), "missing value")
	assert.True(t, panel.IsMissing(out[2]), "missing group key")
}

func TestGroupAdjustIsPerPeriod(t *testing.T) {
	tbl := panel.NewTable("master", "mom", "sic")
	require.NoError(t, tbl.AddRow("A", panel.NewPeriod(2020, 1), 1.0, 10))
	require.NoError(t, tbl.AddRow("B", panel.NewPeriod(2020, 1), 3.0, 10))
	require.NoError(t, tbl.AddRow("A", panel.NewPeriod(2020, 2), 5.0, 10))

	out, err := GroupAdjust(tbl, "mom", "sic", GroupMean)
	require.NoError(t, err)

	// 2020-01 centers at 2; 2020-02 has A alone
	keys := tbl.Keys()
	for i, k := range keys {
		switch {
		case k.Period == panel.NewPeriod(2020, 2):
			assert.InDelta(t, 0, out[i], 1e-12)
		case k.Entity == "A":
			assert.InDelta(t, -1, out[i], 1e-12)
		default:
			assert.InDelta(t, 1, out[i], 1e-12)
		}
	}
}

func TestParseGroupStat(t *testing.T) {
	s, err := ParseGroupStat("")
	require.NoError(t, err)
	assert.Equal(t, GroupMean, s)
	s, err = ParseGroupStat("median")
	require.NoError(t, err)
	assert.Equal(t, GroupMedian, s)
	_, err = ParseGroupStat("mode")
	assert.Error(t, err)
}
