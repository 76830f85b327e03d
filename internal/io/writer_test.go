package io

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aepodrez/crosssignals/internal/panel"
)

func TestWriteSignalCSV(t *testing.T) {
	tbl := panel.NewTable("master", "mom12m")
	require.NoError(t, tbl.AddRow("10001", panel.NewPeriod(2020, 1), 0.25))
	require.NoError(t, tbl.AddRow("10001", panel.NewPeriod(2020, 2), panel.Missing()))
	require.NoError(t, tbl.AddRow("10002", panel.NewPeriod(2019, 12), -0.1))

	path := filepath.Join(t.TempDir(), "out", "Mom12m.csv")
	written, dropped, err := WriteSignalCSV(path, tbl, "mom12m", "Mom12m")
	require.NoError(t, err)
	assert.Equal(t, 2, written)
	assert.Equal(t, 1, dropped)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"entity,yyyymm,Mom12m\n"+
			"10001,202001,0.25\n"+
			"10002,201912,-0.1\n",
		string(data))

	// the temp file does not survive
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteSignalCSVRoundTrip(t *testing.T) {
	tbl := panel.NewTable("master", "beta")
	require.NoError(t, tbl.AddRow("A", panel.NewPeriod(2021, 7), 1.125))
	require.NoError(t, tbl.AddRow("B", panel.NewPeriod(2021, 7), 0.875))

	path := filepath.Join(t.TempDir(), "Beta.csv")
	_, _, err := WriteSignalCSV(path, tbl, "beta", "Beta")
	require.NoError(t, err)

	back, err := LoadCSV(LoadSpec{
		Path:         path,
		EntityColumn: "entity",
		PeriodColumn: "yyyymm",
		Columns:      []string{"Beta"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, back.Len())
	v, err := back.Value("A", panel.NewPeriod(2021, 7), "Beta")
	require.NoError(t, err)
	assert.Equal(t, 1.125, v)
}

func TestWriteSignalCSVUnknownField(t *testing.T) {
	tbl := panel.NewTable("master", "x")
	_, _, err := WriteSignalCSV(filepath.Join(t.TempDir(), "x.csv"), tbl, "nope", "X")
	assert.ErrorIs(t, err, panel.ErrMissingField)
}
