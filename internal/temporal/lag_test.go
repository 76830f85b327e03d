package temporal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aepodrez/crosssignals/internal/panel"
)

// returnsTable builds one entity with monthly returns starting 2020-01.
func returnsTable(t *testing.T, entity panel.EntityID, rets []float64) *panel.Table {
	t.Helper()
	tbl := panel.NewTable("master", "ret")
	for i, r := range rets {
		require.NoError(t, tbl.AddRow(entity, panel.NewPeriod(2020, 1).Add(i), r))
	}
	return tbl
}

func TestLagContiguousSeries(t *testing.T) {
	// entity A: monthly returns for periods 1-6
	tbl := returnsTable(t, "A", []float64{0.01, 0.02, -0.01, 0.03, 0.00, 0.01})

	for _, mode := range []Mode{ByRow, ByPeriod} {
		t.Run(mode.String(), func(t *testing.T) {
			out, err := Lag(tbl, "ret", 1, mode)
			require.NoError(t, err)

			// row 0 has no prior value
			assert.True(t, panel.IsMissing(out[0]))
			// at period 4 the one-month lag is period 3's value
			assert.Equal(t, -0.01, out[3])
			assert.Equal(t, 0.03, out[4])
		})
	}
}

func TestLagAcrossGap(t *testing.T) {
	// entity with a hole: 2020-01, 2020-02, 2020-05
	tbl := panel.NewTable("master", "ret")
	require.NoError(t, tbl.AddRow("A", panel.NewPeriod(2020, 1), 1.0))
	require.NoError(t, tbl.AddRow("A", panel.NewPeriod(2020, 2), 2.0))
	require.NoError(t, tbl.AddRow("A", panel.NewPeriod(2020, 5), 5.0))

	// row-position lag silently reaches across the gap
	byRow, err := Lag(tbl, "ret", 1, ByRow)
	require.NoError(t, err)
	assert.Equal(t, 2.0, byRow[2])

	// period-aware lag wants 2020-04 exactly, which is absent
	byPeriod, err := Lag(tbl, "ret", 1, ByPeriod)
	require.NoError(t, err)
	assert.True(t, panel.IsMissing(byPeriod[2]))

	// a 3-month period-aware lag from 2020-05 lands on 2020-02
	byPeriod3, err := Lag(tbl, "ret", 3, ByPeriod)
	require.NoError(t, err)
	assert.Equal(t, 2.0, byPeriod3[2])
}

func TestLagIsPerEntity(t *testing.T) {
	tbl := panel.NewTable("master", "ret")
	require.NoError(t, tbl.AddRow("A", panel.NewPeriod(2020, 1), 1.0))
	require.NoError(t, tbl.AddRow("A", panel.NewPeriod(2020, 2), 2.0))
	require.NoError(t, tbl.AddRow("B", panel.NewPeriod(2020, 2), 9.0))

	out, err := Lag(tbl, "ret", 1, ByRow)
	require.NoError(t, err)

	// B's first row must not see A's last value
	assert.True(t, panel.IsMissing(out[2]))
}

func TestLead(t *testing.T) {
	tbl := returnsTable(t, "A", []float64{1, 2, 3})
	out, err := Lag(tbl, "ret", -1, ByPeriod)
	require.NoError(t, err)
	assert.Equal(t, 2.0, out[0])
	assert.Equal(t, 3.0, out[1])
	assert.True(t, panel.IsMissing(out[2]))
}

func TestLagMissingField(t *testing.T) {
	tbl := returnsTable(t, "A", []float64{1})
	_, err := Lag(tbl, "nope", 1, ByRow)
	assert.ErrorIs(t, err, panel.ErrMissingField)
}

func TestCompoundReturn(t *testing.T) {
	// Mom12m-style: compound lags 1..2 of ret
	tbl := returnsTable(t, "A", []float64{0.10, 0.20, 0.30, 0.40})

	out, err := CompoundReturn(tbl, "ret", 1, 2, ByPeriod)
	require.NoError(t, err)

	// rows 0 and 1 lack a full lag set
	assert.True(t, panel.IsMissing(out[0]))
	assert.True(t, panel.IsMissing(out[1]))
	// row 2: (1+0.20)*(1+0.10) - 1
	assert.InDelta(t, 1.2*1.1-1, out[2], 1e-12)
	// row 3: (1+0.30)*(1+0.20) - 1
	assert.InDelta(t, 1.3*1.2-1, out[3], 1e-12)
}

func TestCompoundReturnMissingLagPropagates(t *testing.T) {
	tbl := returnsTable(t, "A", []float64{0.10, panel.Missing(), 0.30, 0.40})
	out, err := CompoundReturn(tbl, "ret", 1, 2, ByPeriod)
	require.NoError(t, err)
	// row 2's lag-1 is the missing row 1
	assert.True(t, panel.IsMissing(out[2]))
	// row 3 compounds rows 2 and 1; row 1 is missing
	assert.True(t, panel.IsMissing(out[3]))
}
