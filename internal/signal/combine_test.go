package signal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aepodrez/crosssignals/internal/panel"
)

func combineTable(t *testing.T) *panel.Table {
	t.Helper()
	tbl := panel.NewTable("master", "a", "b")
	p := panel.NewPeriod(2020, 1)
	require.NoError(t, tbl.AddRow("A", p, 6, 2))
	require.NoError(t, tbl.AddRow("B", p, -4, 0))
	require.NoError(t, tbl.AddRow("C", p, panel.Missing(), 3))
	return tbl
}

func TestCombineBinary(t *testing.T) {
	tbl := combineTable(t)

	out, err := combine(tbl, &Step{Op: "combine", Fn: "add", Left: "a", Right: "b"})
	require.NoError(t, err)
	assert.Equal(t, 8.0, out[0])
	assert.Equal(t, -4.0, out[1])
	assert.True(t, panel.IsMissing(out[2]), "missing operand propagates")

	out, err = combine(tbl, &Step{Op: "combine", Fn: "div", Left: "a", Right: "b"})
	require.NoError(t, err)
	assert.Equal(t, 3.0, out[0])
	assert.True(t, panel.IsMissing(out[1]), "division by zero is missing")
}

func TestCombineUnary(t *testing.T) {
	tbl := combineTable(t)

	out, err := combine(tbl, &Step{Op: "combine", Fn: "neg", Left: "a"})
	require.NoError(t, err)
	assert.Equal(t, -6.0, out[0])
	assert.Equal(t, 4.0, out[1])

	out, err = combine(tbl, &Step{Op: "combine", Fn: "abs", Left: "a"})
	require.NoError(t, err)
	assert.Equal(t, 4.0, out[1])

	out, err = combine(tbl, &Step{Op: "combine", Fn: "log", Left: "a"})
	require.NoError(t, err)
	assert.InDelta(t, math.Log(6), out[0], 1e-12)
	assert.True(t, panel.IsMissing(out[1]), "log of a negative is missing")
}

func TestCombineConst(t *testing.T) {
	tbl := combineTable(t)
	c := 10.0

	out, err := combine(tbl, &Step{Op: "combine", Fn: "mul", Left: "a", Const: &c})
	require.NoError(t, err)
	assert.Equal(t, 60.0, out[0])
	assert.Equal(t, -40.0, out[1])
	assert.True(t, panel.IsMissing(out[2]))
}

func TestCombineErrors(t *testing.T) {
	tbl := combineTable(t)
	_, err := combine(tbl, &Step{Op: "combine", Fn: "pow", Left: "a", Right: "b"})
	assert.Error(t, err)
	_, err = combine(tbl, &Step{Op: "combine", Fn: "add", Left: "a"})
	assert.Error(t, err, "binary fn with neither right nor const")
	_, err = combine(tbl, &Step{Op: "combine", Fn: "add", Left: "nope", Right: "b"})
	assert.ErrorIs(t, err, panel.ErrMissingField)
}
